package registry

import (
	"reflect"
	"testing"
)

func TestRegisterParticipantUpsert(t *testing.T) {
	r := New()
	r.RegisterParticipant("c1", "Al")
	r.RegisterParticipant("c2", "Bo")
	r.RegisterParticipant("c1", "Alfred")

	if got := r.ParticipantCount(); got != 2 {
		t.Fatalf("expected 2 participants, got %d", got)
	}
	p, ok := r.Participant("c1")
	if !ok || p.Name != "Alfred" {
		t.Fatalf("expected c1 renamed to Alfred, got %+v ok=%v", p, ok)
	}
	// Re-registering keeps roster position.
	if got := r.ParticipantNames(); !reflect.DeepEqual(got, []string{"Alfred", "Bo"}) {
		t.Fatalf("unexpected roster order: %v", got)
	}
}

func TestFindParticipantByName(t *testing.T) {
	r := New()
	r.RegisterParticipant("c1", "Al")
	r.RegisterParticipant("c2", "Bo")

	id, ok := r.FindParticipantByName("Bo")
	if !ok || id != "c2" {
		t.Fatalf("expected c2, got %q ok=%v", id, ok)
	}
	if _, ok := r.FindParticipantByName("nobody"); ok {
		t.Fatal("expected lookup miss for unknown name")
	}
}

func TestFindParticipantByNameDuplicateNames(t *testing.T) {
	r := New()
	r.RegisterParticipant("c1", "Al")
	r.RegisterParticipant("c2", "Al")

	id, ok := r.FindParticipantByName("Al")
	if !ok || id != "c1" {
		t.Fatalf("expected earliest-registered connection c1, got %q", id)
	}
}

func TestRemoveParticipant(t *testing.T) {
	r := New()
	r.RegisterParticipant("c1", "Al")
	r.RegisterParticipant("c2", "Bo")
	r.RegisterParticipant("c3", "Cy")

	if !r.RemoveParticipant("c2") {
		t.Fatal("expected removal of registered participant to report true")
	}
	if r.RemoveParticipant("c2") {
		t.Fatal("expected second removal to report false")
	}
	if got := r.ParticipantNames(); !reflect.DeepEqual(got, []string{"Al", "Cy"}) {
		t.Fatalf("unexpected roster after removal: %v", got)
	}
}

func TestPresenterMembership(t *testing.T) {
	r := New()
	r.RegisterPresenter("t1")
	r.RegisterPresenter("t1")

	if !r.IsPresenter("t1") {
		t.Fatal("expected t1 to be a presenter")
	}
	if r.IsPresenter("t2") {
		t.Fatal("expected t2 not to be a presenter")
	}
	if got := r.PresenterIDs(); len(got) != 1 || got[0] != "t1" {
		t.Fatalf("unexpected presenter ids: %v", got)
	}
	if !r.RemovePresenter("t1") {
		t.Fatal("expected presenter removal to report true")
	}
	if r.RemovePresenter("t1") {
		t.Fatal("expected second presenter removal to report false")
	}
}

func TestRolesAreIndependent(t *testing.T) {
	r := New()
	r.RegisterParticipant("c1", "Al")
	r.RegisterPresenter("t1")

	if r.IsPresenter("c1") {
		t.Fatal("participant should not be a presenter")
	}
	if _, ok := r.Participant("t1"); ok {
		t.Fatal("presenter should not be a participant")
	}
}
