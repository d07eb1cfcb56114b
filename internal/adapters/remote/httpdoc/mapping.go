package httpdoc

import (
	"pet-care-sync/internal/contracts"
	"pet-care-sync/internal/domain/events"
	"pet-care-sync/internal/domain/pets"
	"pet-care-sync/internal/domain/shares"
)

// Mapping entidad ⇄ documento remoto. Tiene que hacer round-trip exacto
// sobre los campos que viajan; los campos solo-locales (blob en memoria,
// estado de aceptación del co-owner) no forman parte del documento.

func toPetDocument(p pets.Pet) contracts.PetDocument {
	return contracts.PetDocument{
		ID:           p.ID,
		RemoteRef:    p.RemoteRef,
		OwnerID:      p.OwnerID,
		DisplayName:  p.DisplayName,
		ImageRef:     p.ImageRef,
		IsShared:     p.IsShared,
		ShareRef:     p.ShareRef,
		LastModified: p.LastModified,
		CreatedAt:    p.CreatedAt,
	}
}

func fromPetDocument(d contracts.PetDocument) pets.Pet {
	return pets.Pet{
		ID:           d.ID,
		RemoteRef:    d.RemoteRef,
		OwnerID:      d.OwnerID,
		DisplayName:  d.DisplayName,
		ImageRef:     d.ImageRef,
		IsShared:     d.IsShared,
		ShareRef:     d.ShareRef,
		LastModified: d.LastModified,
		CreatedAt:    d.CreatedAt,
	}
}

func toEventDocument(e events.Event) contracts.EventDocument {
	return contracts.EventDocument{
		ID:           e.ID,
		RemoteRef:    e.RemoteRef,
		PetID:        e.PetRef,
		Kind:         string(e.Kind),
		OccurredAt:   e.OccurredAt,
		LastModified: e.LastModified,
	}
}

func fromEventDocument(d contracts.EventDocument) events.Event {
	return events.Event{
		ID:           d.ID,
		RemoteRef:    d.RemoteRef,
		PetRef:       d.PetID,
		Kind:         events.Kind(d.Kind),
		OccurredAt:   d.OccurredAt,
		LastModified: d.LastModified,
	}
}

func toShareDocument(s shares.Share) contracts.ShareDocument {
	return contracts.ShareDocument{
		ID:           s.ID,
		SubjectID:    s.SubjectRef,
		IssuerID:     s.IssuedByAccount,
		IssuerName:   s.IssuerName,
		TargetHint:   s.TargetHint,
		Accepted:     s.Accepted,
		AcceptedBy:   s.AcceptedBy,
		AcceptedName: s.AcceptedName,
		AcceptedAt:   s.AcceptedAt,
	}
}

func fromShareDocument(d contracts.ShareDocument) shares.Share {
	return shares.Share{
		ID:              d.ID,
		SubjectRef:      d.SubjectID,
		IssuedByAccount: d.IssuerID,
		IssuerName:      d.IssuerName,
		TargetHint:      d.TargetHint,
		Accepted:        d.Accepted,
		AcceptedBy:      d.AcceptedBy,
		AcceptedName:    d.AcceptedName,
		AcceptedAt:      d.AcceptedAt,
	}
}
