package main

import (
	"encoding/json"
	"testing"
)

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "No scans recorded")
}

func TestHistoryShowAndPrune(t *testing.T) {
	env := setupCLITestEnv(t)
	target := env.media(t, "mix.mp3", 20000)

	if _, _, err := runCLI(t, env, "scan", target, "--no-cache", "-w"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	out, _, err := runCLI(t, env, "history", "list", "--json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var scans []scanRecordView
	if err := json.Unmarshal([]byte(out), &scans); err != nil {
		t.Fatalf("decode scans: %v\n%s", err, out)
	}
	if len(scans) != 1 || scans[0].Target != target {
		t.Fatalf("scans = %+v", scans)
	}

	out, _, err = runCLI(t, env, "history", "show", shortID(scans[0].ID), "--stage", "merged", "--kind", "music")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, scans[0].ID)
	requireContains(t, out, "no_result")

	if _, _, err := runCLI(t, env, "history", "show", scans[0].ID, "--stage", "final"); err == nil {
		t.Fatal("expected unknown stage error")
	}

	out, _, err = runCLI(t, env, "history", "prune", "--days", "1")
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	requireContains(t, out, "Removed 0 scans")

	if _, _, err := runCLI(t, env, "history", "prune"); err == nil {
		t.Fatal("expected error without --days")
	}
}
