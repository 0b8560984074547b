package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHandleWinnerMessage(t *testing.T) {
	dir := t.TempDir()

	t.Run("appends one line per winner", func(t *testing.T) {
		for _, guest := range []uint64{7, 8} {
			body, _ := json.Marshal(WinnerDrawnEvent{
				BatchID: "b-1", RaffleType: "public", EventID: 1, PrizeID: 2,
				PrizeName: "TV", GuestID: guest, GuestName: "Ana", Position: 1,
				DrawnAt: "2026-10-15T10:00:00Z",
			})
			if err := HandleWinnerMessage(dir, body); err != nil {
				t.Fatalf("HandleWinnerMessage: %v", err)
			}
		}
		data, err := os.ReadFile(filepath.Join(dir, "winners.log"))
		if err != nil {
			t.Fatalf("read log: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(lines))
		}
		if !strings.Contains(lines[0], `prize="TV" (2)`) || !strings.Contains(lines[0], "batch=b-1") {
			t.Errorf("unexpected line: %s", lines[0])
		}
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		if err := HandleWinnerMessage(dir, []byte("{")); err == nil {
			t.Error("expected error for invalid json")
		}
		if err := HandleWinnerMessage(dir, []byte(`{"batch_id":"x"}`)); err == nil {
			t.Error("expected error for message without guest")
		}
	})
}
