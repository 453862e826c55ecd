package transition

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/MysticalGareth/UBB-sub000/billboard"
	"github.com/MysticalGareth/UBB-sub000/billboard/classifier"
)

func buildBMP(width, height int32) []byte {
	const headerSize = 54
	stride := ((width*3 + 3) / 4) * 4
	fileSize := uint32(headerSize) + uint32(stride*height)
	buf := make([]byte, fileSize)
	buf[0], buf[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(buf[2:6], fileSize)
	binary.LittleEndian.PutUint32(buf[10:14], headerSize)
	binary.LittleEndian.PutUint32(buf[14:18], 40)
	binary.LittleEndian.PutUint32(buf[18:22], uint32(width))
	binary.LittleEndian.PutUint32(buf[22:26], uint32(height))
	binary.LittleEndian.PutUint16(buf[26:28], 1)
	binary.LittleEndian.PutUint16(buf[28:30], 24)
	return buf
}

func claimPayload(x0, y0 uint16, bmp []byte) []byte {
	buf := []byte{0x13, 0x37, 0x01, 0x01, 0, 0, 0, 0}
	binary.LittleEndian.PutUint16(buf[4:6], x0)
	binary.LittleEndian.PutUint16(buf[6:8], y0)
	buf = append(buf, 0x60) // zero-length CBOR text string (no URI)
	buf = append(buf, bmp...)
	return buf
}

func retryPayload(x0, y0 uint16) []byte {
	buf := []byte{0x13, 0x37, 0x01, 0x02, 0, 0, 0, 0}
	binary.LittleEndian.PutUint16(buf[4:6], x0)
	binary.LittleEndian.PutUint16(buf[6:8], y0)
	return buf
}

func transferPayload() []byte {
	return []byte{0x13, 0x37, 0x01, 0x04, 0, 0, 0, 0}
}

func deedOut(txid string, vout uint32, addr string) classifier.DeedOutput {
	return classifier.DeedOutput{Outpoint: billboard.Outpoint{TxID: txid, Vout: vout}, Address: addr}
}

func genesis() *billboard.Snapshot {
	return billboard.NewGenesisSnapshot("genesis", "", 0, time.Unix(0, 0), 0)
}

func TestApply_SingleValidClaim(t *testing.T) {
	s := genesis()
	bmpBytes := buildBMP(2, 2)
	c := classifier.Classified{
		Relevant:    true,
		Payload:     claimPayload(100, 100, bmpBytes),
		DeedOutputs: []classifier.DeedOutput{deedOut("tx1", 0, "addr1")},
	}
	res := Apply(s, "tx1", c, time.Unix(1, 0))
	if !res.PlotCreated {
		t.Fatalf("want plot created, got %+v", res)
	}
	plot, ok := s.PlotByTxID("tx1")
	if !ok {
		t.Fatal("want plot present")
	}
	if plot.Status != billboard.PLACED {
		t.Fatalf("want PLACED, got %v\n%s", plot.Status, spew.Sdump(plot))
	}
	if plot.Rect != (billboard.Rect{X0: 100, Y0: 100, W: 2, H: 2}) {
		t.Fatalf("got rect %+v", plot.Rect)
	}
	if _, ok := s.PlotByDeedOutpoint(billboard.Outpoint{TxID: "tx1", Vout: 0}); !ok {
		t.Fatal("want deed indexed")
	}
}

func TestApply_OverlapAcrossBlocks(t *testing.T) {
	s := genesis()
	bmpBytes := buildBMP(128, 127)
	c1 := classifier.Classified{Payload: claimPayload(100, 100, bmpBytes), DeedOutputs: []classifier.DeedOutput{deedOut("txA", 0, "a")}}
	Apply(s, "txA", c1, time.Unix(1, 0))

	s2 := s.Fork("block2", 1, time.Unix(2, 0), 1)
	c2 := classifier.Classified{Payload: claimPayload(150, 150, bmpBytes), DeedOutputs: []classifier.DeedOutput{deedOut("txB", 0, "b")}}
	Apply(s2, "txB", c2, time.Unix(2, 0))

	plotB, _ := s2.PlotByTxID("txB")
	if plotB.Status != billboard.UNPLACED {
		t.Fatalf("want UNPLACED, got %v", plotB.Status)
	}
	plotA, _ := s.PlotByTxID("txA")
	if plotA.Status != billboard.PLACED {
		t.Fatalf("fork must not mutate parent: want PLACED, got %v", plotA.Status)
	}
}

func TestApply_SameBlockOrderingWins(t *testing.T) {
	s := genesis()
	bmpBytes := buildBMP(10, 10)
	c1 := classifier.Classified{Payload: claimPayload(0, 0, bmpBytes), DeedOutputs: []classifier.DeedOutput{deedOut("tx1", 0, "a")}}
	Apply(s, "tx1", c1, time.Unix(1, 0))
	c2 := classifier.Classified{Payload: claimPayload(5, 5, bmpBytes), DeedOutputs: []classifier.DeedOutput{deedOut("tx2", 0, "b")}}
	Apply(s, "tx2", c2, time.Unix(1, 0))

	p1, _ := s.PlotByTxID("tx1")
	p2, _ := s.PlotByTxID("tx2")
	if p1.Status != billboard.PLACED || p2.Status != billboard.UNPLACED {
		t.Fatalf("want first PLACED second UNPLACED, got %v %v", p1.Status, p2.Status)
	}
}

func TestApply_RetryClaimRescues(t *testing.T) {
	s := genesis()
	bmpBytes := buildBMP(128, 127)
	Apply(s, "occupant", classifier.Classified{Payload: claimPayload(100, 100, bmpBytes), DeedOutputs: []classifier.DeedOutput{deedOut("occupant", 0, "a")}}, time.Unix(1, 0))
	Apply(s, "victim", classifier.Classified{Payload: claimPayload(120, 120, bmpBytes), DeedOutputs: []classifier.DeedOutput{deedOut("victim", 0, "b")}}, time.Unix(1, 0))

	victim, _ := s.PlotByTxID("victim")
	if victim.Status != billboard.UNPLACED {
		t.Fatalf("want victim UNPLACED, got %v", victim.Status)
	}

	retry := classifier.Classified{
		Payload:      retryPayload(2000, 2000),
		HasSpentDeed: true,
		SpentDeed:    victim.DeedUTXO,
		DeedOutputs:  []classifier.DeedOutput{deedOut("retryTx", 0, "b")},
	}
	res := Apply(s, "retryTx", retry, time.Unix(2, 0))
	if !res.PlotUpdated {
		t.Fatalf("want updated, got %+v", res)
	}
	victim, _ = s.PlotByTxID("victim")
	if victim.Status != billboard.PLACED || victim.Rect.X0 != 2000 || victim.Rect.Y0 != 2000 {
		t.Fatalf("want rescued plot PLACED at (2000,2000), got %+v", victim)
	}

	// A subsequent retry targeting a now-PLACED plot is ignored but still
	// rotates the deed.
	retry2 := classifier.Classified{
		Payload:      retryPayload(3000, 3000),
		HasSpentDeed: true,
		SpentDeed:    victim.DeedUTXO,
		DeedOutputs:  []classifier.DeedOutput{deedOut("retryTx2", 0, "b")},
	}
	res2 := Apply(s, "retryTx2", retry2, time.Unix(3, 0))
	if !res2.PlotUpdated {
		t.Fatalf("want deed-only update, got %+v", res2)
	}
	victim, _ = s.PlotByTxID("victim")
	if victim.Rect.X0 != 2000 {
		t.Fatalf("want rect unchanged by ignored retry, got %+v", victim.Rect)
	}
	if victim.DeedUTXO.TxID != "retryTx2" {
		t.Fatalf("want deed rotated to retryTx2, got %+v", victim.DeedUTXO)
	}
}

func TestApply_DeedTransferAndBricking(t *testing.T) {
	s := genesis()
	bmpBytes := buildBMP(128, 127)
	Apply(s, "claimTx", classifier.Classified{Payload: claimPayload(100, 100, bmpBytes), DeedOutputs: []classifier.DeedOutput{deedOut("claimTx", 0, "a")}}, time.Unix(1, 0))
	plot, _ := s.PlotByTxID("claimTx")

	rotate := classifier.Classified{
		Payload:      transferPayload(),
		HasSpentDeed: true,
		SpentDeed:    plot.DeedUTXO,
		DeedOutputs:  []classifier.DeedOutput{deedOut("rotateTx", 0, "c")},
	}
	Apply(s, "rotateTx", rotate, time.Unix(2, 0))
	plot, _ = s.PlotByTxID("claimTx")
	if plot.Status != billboard.PLACED || plot.Owner != "c" {
		t.Fatalf("want rotated ownership, unchanged placement: %+v", plot)
	}

	brickTx := classifier.Classified{
		Payload:      transferPayload(),
		HasSpentDeed: true,
		SpentDeed:    plot.DeedUTXO,
		DeedOutputs:  nil,
	}
	res := Apply(s, "brickTx", brickTx, time.Unix(3, 0))
	if !res.PlotBricked {
		t.Fatalf("want bricked, got %+v", res)
	}
	plot, _ = s.PlotByTxID("claimTx")
	if plot.Status != billboard.BRICKED || !plot.WasPlacedBeforeBricking {
		t.Fatalf("want BRICKED with was_placed_before_bricking, got %+v", plot)
	}

	overlapping := classifier.Classified{
		Payload:     claimPayload(150, 150, buildBMP(100, 100)),
		DeedOutputs: []classifier.DeedOutput{deedOut("claim2", 0, "d")},
	}
	Apply(s, "claim2", overlapping, time.Unix(4, 0))
	claim2, _ := s.PlotByTxID("claim2")
	if claim2.Status != billboard.UNPLACED {
		t.Fatalf("want claim overlapping bricked-but-occupying plot to be UNPLACED, got %v", claim2.Status)
	}
}

func TestApply_MalformedPayloadIsTransferOnly(t *testing.T) {
	s := genesis()
	bmpBytes := buildBMP(10, 10)
	Apply(s, "claimTx", classifier.Classified{Payload: claimPayload(100, 100, bmpBytes), DeedOutputs: []classifier.DeedOutput{deedOut("claimTx", 0, "a")}}, time.Unix(1, 0))
	plot, _ := s.PlotByTxID("claimTx")

	malformed := []byte{0xde, 0xad, 0x01, 0x01, 0, 0, 0, 0}
	rotate := classifier.Classified{
		Payload:      malformed,
		HasSpentDeed: true,
		SpentDeed:    plot.DeedUTXO,
		DeedOutputs:  []classifier.DeedOutput{deedOut("rotateTx", 0, "e")},
	}
	res := Apply(s, "rotateTx", rotate, time.Unix(2, 0))
	if res.Warning == "" {
		t.Fatal("want ParsePayloadError warning")
	}
	plot, _ = s.PlotByTxID("claimTx")
	if plot.Owner != "e" || plot.Status != billboard.PLACED {
		t.Fatalf("want deed rotated, plot otherwise unchanged: %+v", plot)
	}

	brick := classifier.Classified{
		Payload:      malformed,
		HasSpentDeed: true,
		SpentDeed:    plot.DeedUTXO,
		DeedOutputs:  nil,
	}
	res2 := Apply(s, "brickTx", brick, time.Unix(3, 0))
	if !res2.PlotBricked {
		t.Fatalf("want bricked, got %+v", res2)
	}
}

func TestApply_NotUBBNoChange(t *testing.T) {
	s := genesis()
	c := classifier.Classified{}
	res := Apply(s, "tx1", c, time.Unix(1, 0))
	if res.PlotCreated || res.PlotUpdated || res.PlotBricked {
		t.Fatalf("want no-op, got %+v", res)
	}
}
