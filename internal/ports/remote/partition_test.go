package remote

import (
	"testing"

	"pet-care-sync/internal/domain/pets"
)

func TestPartitionFor(t *testing.T) {
	cases := []struct {
		name   string
		pet    pets.Pet
		acting string
		want   Partition
	}{
		{
			name:   "owned private pet",
			pet:    pets.Pet{ID: "p1", OwnerID: "acct-a"},
			acting: "acct-a",
			want:   Partition{OwnerID: "acct-a", Shared: false},
		},
		{
			// Emitido pero aún no aceptado: sigue en la partición privada.
			name:   "owned issued not accepted",
			pet:    pets.Pet{ID: "p1", OwnerID: "acct-a", IsShared: true},
			acting: "acct-a",
			want:   Partition{OwnerID: "acct-a", Shared: false},
		},
		{
			// El owner siempre escribe en su propia partición, aceptado o no.
			name:   "owner of accepted share",
			pet:    pets.Pet{ID: "p1", OwnerID: "acct-a", IsShared: true, IsShareAccepted: true},
			acting: "acct-a",
			want:   Partition{OwnerID: "acct-a", Shared: false},
		},
		{
			// El co-owner resuelve a la partición compartida del emisor.
			name:   "co-owner of accepted share",
			pet:    pets.Pet{ID: "p1", OwnerID: "acct-a", IsShared: true, IsShareAccepted: true},
			acting: "acct-b",
			want:   Partition{OwnerID: "acct-a", Shared: true},
		},
		{
			name:   "non-owner without accepted share",
			pet:    pets.Pet{ID: "p1", OwnerID: "acct-a", IsShared: true},
			acting: "acct-b",
			want:   Partition{OwnerID: "acct-a", Shared: false},
		},
	}

	for _, tc := range cases {
		got := PartitionFor(tc.pet, tc.acting)
		if got != tc.want {
			t.Errorf("%s: PartitionFor = %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestPartitionFor_IsPure(t *testing.T) {
	p := pets.Pet{ID: "p1", OwnerID: "acct-a", IsShared: true, IsShareAccepted: true}
	first := PartitionFor(p, "acct-b")
	for i := 0; i < 10; i++ {
		if got := PartitionFor(p, "acct-b"); got != first {
			t.Fatalf("same inputs must give same partition, got %+v vs %+v", got, first)
		}
	}
}
