package email

import (
	"strings"
	"testing"
)

func sampleEvent() AppointmentEvent {
	return AppointmentEvent{
		UserName:  "Maria Silva",
		UserEmail: "maria@example.com",
		Date:      "2024-06-13",
		Staff:     "Ana",
		Service:   "Corte Infantil",
		Items: []EventItem{
			{ChildName: "Lia", Slot: "09:30"},
			{ChildName: "Bia", Slot: "10:00"},
		},
	}
}

func TestBookedBody(t *testing.T) {
	body := BookedBody(sampleEvent())

	for _, want := range []string{
		"Olá, Maria!",
		"Lia: Corte Infantil com Ana em 13/06/2024 às 09:30",
		"Bia: Corte Infantil com Ana em 13/06/2024 às 10:00",
		"Equipe do FridaKids",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestEditedBodyShowsPreviousSlot(t *testing.T) {
	evt := sampleEvent()
	evt.Items = evt.Items[:1]
	evt.Previous = &Snapshot{
		Date: "2024-06-13", Slot: "11:00", Staff: "Ana",
		Service: "Corte Infantil", ChildName: "Lia",
	}
	body := EditedBody(evt)
	if !strings.Contains(body, "Antes: Corte Infantil com Ana em 13/06/2024 às 11:00") {
		t.Errorf("body missing previous state:\n%s", body)
	}
	if !strings.Contains(body, "às 09:30") {
		t.Errorf("body missing new slot:\n%s", body)
	}
}

func TestCancelledBody(t *testing.T) {
	body := CancelledBody(sampleEvent())
	if !strings.Contains(body, "cancelado") || !strings.Contains(body, "Equipe do FridaKids") {
		t.Errorf("unexpected body:\n%s", body)
	}
}

func TestResetBody(t *testing.T) {
	body := ResetBody(ResetEvent{Name: "Maria Silva", ResetURL: "https://fridakids.com/redefinir-senha?token=abc"})
	if !strings.Contains(body, "https://fridakids.com/redefinir-senha?token=abc") {
		t.Errorf("body missing reset link:\n%s", body)
	}
}

func TestFormatDate(t *testing.T) {
	if got := formatDate("2024-06-13"); got != "13/06/2024" {
		t.Fatalf("expected 13/06/2024, got %q", got)
	}
	if got := formatDate("garbage"); got != "garbage" {
		t.Fatalf("unparseable input should pass through, got %q", got)
	}
}

func TestFirstName(t *testing.T) {
	if got := firstName("Maria Silva"); got != "Maria" {
		t.Fatalf("expected Maria, got %q", got)
	}
	if got := firstName(""); got != "cliente" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
