package store

import (
	"testing"
	"time"

	"github.com/MysticalGareth/UBB-sub000/billboard"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "mainnet", "genesis-hash")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	snap := billboard.NewGenesisSnapshot("genesis-hash", "", 0, time.Unix(1000, 0), 1)
	plot := &billboard.Plot{
		TxID:        "claim1",
		Rect:        billboard.Rect{X0: 10, Y0: 20, W: 2, H: 2},
		Status:      billboard.PLACED,
		DeedUTXO:    billboard.Outpoint{TxID: "claim1", Vout: 0},
		Owner:       "addr1",
		URI:         "ubb://x",
		CreatedAt:   time.Unix(1000, 0),
		LastUpdated: time.Unix(1000, 0),
	}
	snap.SetPlot(nil, plot)
	snap.RotateDeed(billboard.Outpoint{}, plot.DeedUTXO, plot.TxID)

	if err := s.Save(snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !s.Has("genesis-hash") {
		t.Fatal("want Has true after Save")
	}

	loaded, err := s.Load("genesis-hash")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.BlockHash != "genesis-hash" || loaded.BlockHeight != 0 {
		t.Fatalf("got %+v", loaded)
	}
	gotPlot, ok := loaded.PlotByTxID("claim1")
	if !ok {
		t.Fatal("want plot round-tripped")
	}
	if gotPlot.Rect != plot.Rect || gotPlot.Status != billboard.PLACED || gotPlot.Owner != "addr1" {
		t.Fatalf("got %+v", gotPlot)
	}
	if _, ok := loaded.PlotByDeedOutpoint(plot.DeedUTXO); !ok {
		t.Fatal("want deed index round-tripped")
	}
}

func TestStore_LoadMissingReturnsErrNotFound(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir, "mainnet", "genesis-hash")
	if _, err := s.Load("nope"); err != ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStore_TipPointer(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir, "mainnet", "genesis-hash")
	if _, err := s.Tip(); err != ErrNotFound {
		t.Fatalf("want ErrNotFound before any tip set, got %v", err)
	}
	if err := s.SetTip("block5"); err != nil {
		t.Fatalf("set tip: %v", err)
	}
	tip, err := s.Tip()
	if err != nil || tip != "block5" {
		t.Fatalf("got tip=%q err=%v", tip, err)
	}
}

func TestStore_SaveImage(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir, "mainnet", "genesis-hash")
	if err := s.SaveImage("claim1", []byte("bmp-bytes")); err != nil {
		t.Fatalf("save image: %v", err)
	}
}

func TestStore_IsolatesGenesisHashes(t *testing.T) {
	dir := t.TempDir()
	a, _ := New(dir, "mainnet", "genesisA")
	b, _ := New(dir, "mainnet", "genesisB")
	_ = a.SetTip("tipA")
	if _, err := b.Tip(); err != ErrNotFound {
		t.Fatalf("want genesis directories isolated, got %v", err)
	}
}
