package cnc

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/TheAlpha16/awg-cnc/scpi"
)

func TestUploadOrder(t *testing.T) {
	inst := newMockInstrument("test")
	tr, err := scpi.NewTransfer("DATA:ARB w,", make([]byte, 4), "\n")
	if err != nil {
		t.Fatal(err)
	}
	tr.Setup = []string{"FORM:BORD SWAP"}
	tr.Follow = []string{"FUNC:ARB w"}

	if err := Upload(context.Background(), inst, tr); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	want := []string{"FORM:BORD SWAP", "*WAI", "FUNC:ARB w"}
	if got := inst.Clauses(); !reflect.DeepEqual(got, want) {
		t.Errorf("clauses = %q, want %q", got, want)
	}
	if len(inst.blocks) != 1 || string(inst.blocks[0]) != "DATA:ARB w,#14\x00\x00\x00\x00\n" {
		t.Errorf("blocks = %q", inst.blocks)
	}
}

func TestUploadStopsOnBlockFailure(t *testing.T) {
	inst := newMockInstrument("test")
	inst.writeErr = ErrConnectionWriteFailed
	tr, _ := scpi.NewTransfer("X ", make([]byte, 4), "")
	tr.Follow = []string{"NEVER"}

	if err := Upload(context.Background(), inst, tr); !errors.Is(err, ErrConnectionWriteFailed) {
		t.Fatalf("Expected ErrConnectionWriteFailed, got: %v", err)
	}
	if got := inst.Clauses(); len(got) != 0 {
		t.Fatalf("Expected nothing after the failed block, got: %q", got)
	}
}

func TestSendAllSkipsEmptyMessages(t *testing.T) {
	inst := newMockInstrument("test")
	h := SendAll(
		scpi.Template{Header: "A:", Style: scpi.Chained, Fields: []scpi.Field{{Key: "B", When: scpi.Present("x")}}},
		scpi.Template{Header: "C:", Style: scpi.Chained, Fields: []scpi.Field{{Key: "D", Value: scpi.Literal("1")}}},
	)
	if err := h(context.Background(), inst, scpi.Params{}); err != nil {
		t.Fatal(err)
	}
	if got := inst.Clauses(); len(got) != 1 || got[0] != "C:D 1" {
		t.Fatalf("clauses = %q", got)
	}
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Sleep ignored the canceled context")
	}
}

func TestUploadChecksErrorsLast(t *testing.T) {
	inst := checkingInstrument{newMockInstrument("test")}
	inst.checkErr = fmt.Errorf("%w: -222 Data out of range", ErrPartialApply)
	tr, _ := scpi.NewTransfer("DATA:ARB w,", make([]byte, 4), "\n")
	tr.Follow = []string{"FUNC:ARB w"}

	if err := Upload(context.Background(), inst, tr); !errors.Is(err, ErrPartialApply) {
		t.Fatalf("Expected ErrPartialApply, got: %v", err)
	}
	if got := inst.Clauses(); len(got) != 2 || got[1] != "FUNC:ARB w" {
		t.Fatalf("Expected the follow-up clause before the check, got: %q", got)
	}
}

func TestUploadRejectsEmptyTransfer(t *testing.T) {
	inst := newMockInstrument("test")
	if err := Upload(context.Background(), inst, scpi.Transfer{Follow: []string{"NEVER"}}); !errors.Is(err, ErrMalformedParameters) {
		t.Fatalf("Expected ErrMalformedParameters, got: %v", err)
	}
	if len(inst.Clauses()) != 0 || len(inst.blocks) != 0 {
		t.Fatal("Expected nothing written for an empty transfer")
	}
}
