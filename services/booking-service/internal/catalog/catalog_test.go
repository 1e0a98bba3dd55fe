package catalog

import (
	"reflect"
	"testing"
)

func TestNew_TrimsAndDeduplicatesPreservingOrder(t *testing.T) {
	cat := New([]string{" 09:00", "09:30 ", "09:00", "bogus", ""}, []string{"19:00", "09:30", "19:00"})

	std := cat.Slots(false)
	if !reflect.DeepEqual(std, []string{"09:00", "09:30"}) {
		t.Fatalf("unexpected standard slots: %v", std)
	}
	admin := cat.Slots(true)
	if !reflect.DeepEqual(admin, []string{"09:00", "09:30", "19:00"}) {
		t.Fatalf("unexpected admin slots: %v", admin)
	}
}

func TestContains(t *testing.T) {
	cat := New([]string{"09:00"}, []string{"19:00"})
	if !cat.Contains(" 09:00 ", false) {
		t.Fatal("Contains should trim its argument")
	}
	if cat.Contains("19:00", false) {
		t.Fatal("extended slot must not be offered to clients")
	}
	if !cat.Contains("19:00", true) {
		t.Fatal("extended slot should be offered to admins")
	}
}

func TestDefaultCatalog(t *testing.T) {
	cat := Default()
	std := cat.Slots(false)
	if std[0] != "09:00" || std[len(std)-1] != "18:30" {
		t.Fatalf("unexpected standard grid bounds: %v", std)
	}
	if len(std) != 20 {
		t.Fatalf("expected 20 standard slots, got %d", len(std))
	}
	admin := cat.Slots(true)
	if admin[len(admin)-1] != "20:00" {
		t.Fatalf("expected extended grid to end at 20:00, got %v", admin)
	}
}

func TestMinutes(t *testing.T) {
	if m := Minutes("09:30"); m != 570 {
		t.Fatalf("expected 570, got %d", m)
	}
	if m := Minutes("not-a-time"); m != -1 {
		t.Fatalf("expected -1 for invalid input, got %d", m)
	}
}
