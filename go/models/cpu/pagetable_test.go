package cpu

import (
	"bytes"
	"testing"
)

func TestPageTableMap(t *testing.T) {
	pt := NewPageTable(0x1000)
	pt.Map(0x1000, 0x3000, PROT_READ|PROT_WRITE, "data")
	for _, addr := range []uint64{0x1000, 0x1fff, 0x2000, 0x3fff} {
		if _, ok := pt.Lookup(addr); !ok {
			t.Errorf("%#x not mapped", addr)
		}
	}
	if _, ok := pt.Lookup(0x4000); ok {
		t.Error("page past the mapping is present")
	}
	if !pt.Mapped(0x1800, 0x2000) || pt.Mapped(0x3800, 0x1000) {
		t.Error("range check wrong")
	}

	pt.Unmap(0x2000, 0x1000)
	if pt.Mapped(0x1000, 0x3000) {
		t.Error("hole not detected")
	}
	want := "0x1000-0x2000 rw- [data]\n0x3000-0x4000 rw- [data]"
	if got := pt.Regions().String(); got != want {
		t.Errorf("Regions() = %q, want %q", got, want)
	}
}

func TestPageTableRegions(t *testing.T) {
	pt := NewPageTable(0x1000)
	pt.Map(0x1000, 0x4000, PROT_READ, "")
	pt.Protect(0x2000, 0x1000, PROT_READ|PROT_EXEC)
	pt.Map(0x5000, 0x1000, PROT_READ, "heap")
	want := Regions{
		{Addr: 0x1000, Size: 0x1000, Prot: PROT_READ},
		{Addr: 0x2000, Size: 0x1000, Prot: PROT_READ | PROT_EXEC},
		{Addr: 0x3000, Size: 0x2000, Prot: PROT_READ},
		{Addr: 0x5000, Size: 0x1000, Prot: PROT_READ, Desc: "heap"},
	}
	got := pt.Regions()
	if len(got) != len(want) {
		t.Fatalf("got %d regions, want %d:\n%s", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("region %d = %v, want %v", i, got[i], want[i])
		}
	}
	if s := got[1].String(); s != "0x2000-0x3000 r-x" {
		t.Errorf("bad region string %q", s)
	}
}

func TestPageTableAccess(t *testing.T) {
	pt := NewPageTable(0x100)
	pt.Map(0x100, 0x200, PROT_READ|PROT_WRITE, "")
	data := bytes.Repeat([]byte{0xaa}, 0x20)
	if err := pt.Write(0x1f0, data, PROT_WRITE); err != nil {
		t.Fatal("write across pages failed:", err)
	}
	tmp := make([]byte, 0x20)
	if err := pt.Read(0x1f0, tmp, PROT_READ); err != nil || !bytes.Equal(tmp, data) {
		t.Fatal("read across pages failed:", err)
	}

	// nothing is written unless every page is present
	if err := pt.Write(0x2f0, data, 0); err == nil {
		t.Fatal("write past the end succeeded")
	} else if merr, ok := err.(*MemError); !ok || merr.Enum != MEM_WRITE_UNMAPPED {
		t.Errorf("wrong error: %v", err)
	}
	pg, _ := pt.Lookup(0x2f0)
	if pg.Data[0xf0] != 0 {
		t.Error("partial write leaked into a mapped page")
	}

	pt.Protect(0x200, 0x100, PROT_READ)
	if err := pt.Write(0x1f0, data, PROT_WRITE); err == nil {
		t.Error("write to a read-only page succeeded")
	} else if merr := err.(*MemError); merr.Enum != MEM_WRITE_PROT {
		t.Errorf("wrong error: %v", err)
	}
	if err := pt.Read(0x50, tmp, 0); err == nil {
		t.Error("read below the mapping succeeded")
	} else if merr := err.(*MemError); merr.Enum != MEM_READ_UNMAPPED {
		t.Errorf("wrong error: %v", err)
	}
}

func TestMemError(t *testing.T) {
	err := &MemError{Addr: 0x1000, Size: 4, Enum: MEM_READ_PROT}
	if err.Error() != "protected read at 0x1000(4)" {
		t.Errorf("bad message %q", err.Error())
	}
}
