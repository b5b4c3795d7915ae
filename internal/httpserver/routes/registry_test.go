package routes

import (
	"reflect"
	"testing"
)

func TestGroupsAreSortedByName(t *testing.T) {
	want := []string{"admin", "infra", "public"}
	if got := Groups(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Groups() = %v, want %v", got, want)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate group")
		}
	}()
	Register("admin", registerAdmin)
}
