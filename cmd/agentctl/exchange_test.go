// SPDX-FileCopyrightText: 2026 The comunicacionagentes Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExchangeFileNames(t *testing.T) {
	var tests = []struct {
		name    string
		request bool
		reply   string
	}{
		{"dir/event.json", true, "dir/event.reply.json"},
		{"dir/event.reply.json", false, "dir/event.reply.reply.json"},
		{"dir/notes.txt", false, "dir/notes.txt.reply.json"},
	}

	for _, test := range tests {
		if r := isRequestFile(test.name); r != test.request {
			t.Fatalf("%s: request file is %t", test.name, r)
		} else if p := replyPath(test.name); p != test.reply {
			t.Fatalf("%s: reply path is %s", test.name, p)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	if conf, err := loadConfig(filepath.Join(dir, "missing.toml")); err != nil {
		t.Fatal(err)
	} else if conf.Logging.Level != "warn" {
		t.Fatalf("default level is %s", conf.Logging.Level)
	}

	filename := filepath.Join(dir, configFile)
	content := "[agent]\nagent-id = \"agent_cli@localhost\"\nreconnect-delay = 2\ntimeout = 3\n"
	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	conf, err := loadConfig(filename)
	if err != nil {
		t.Fatal(err)
	}

	cc := conf.clientConfig()
	if cc.AgentID != "agent_cli@localhost" || cc.Connection.ReconnectDelay != 2*time.Second {
		t.Fatalf("unexpected client config %+v", cc)
	}

	ctx, cancel := conf.commandContext()
	defer cancel()
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > 3*time.Second {
		t.Fatalf("unexpected deadline %v", deadline)
	}

	if err := os.WriteFile(filename, []byte("[logging]\nlevel = \"loud\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(filename); err == nil {
		t.Fatal("unknown level was accepted")
	}
}

func TestExchangeDeliverAfterStop(t *testing.T) {
	ex := &exchange{
		resultChan: make(chan exchangeResult),
		doneChan:   make(chan struct{}),
	}

	go func() {
		result := <-ex.resultChan
		if result.file != "first.json" {
			t.Errorf("received result for %s", result.file)
		}
	}()
	if !ex.deliver(exchangeResult{file: "first.json"}) {
		t.Fatal("result was not delivered to a running handler")
	}

	close(ex.doneChan)

	delivered := make(chan bool)
	go func() { delivered <- ex.deliver(exchangeResult{file: "late.json"}) }()

	select {
	case ok := <-delivered:
		if ok {
			t.Fatal("result was delivered after the handler stopped")
		}
	case <-time.After(time.Second):
		t.Fatal("delivering blocked after the handler stopped")
	}
}
