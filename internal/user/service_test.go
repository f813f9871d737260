package user

import (
	"context"
	"errors"
	"testing"

	"example.com/godlife/internal/domain"
	"example.com/godlife/internal/persistence/memory"
)

func TestResolveCreatesWithDefaults(t *testing.T) {
	service := NewService(memory.NewStore())

	resolved, created, err := service.Resolve(context.Background(), ResolveInput{
		ExternalID: "kakao-123",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !created {
		t.Fatalf("expected created")
	}
	if resolved.Name != "Kakao User" {
		t.Fatalf("expected default name got %s", resolved.Name)
	}
	if resolved.Timezone != "Asia/Seoul" {
		t.Fatalf("expected default timezone got %s", resolved.Timezone)
	}
	if resolved.Status != domain.UserStatusActive {
		t.Fatalf("expected ACTIVE got %s", resolved.Status)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	service := NewService(memory.NewStore())

	first, _, err := service.Resolve(context.Background(), ResolveInput{
		ExternalID: "kakao-123",
		Name:       "Alice",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	second, created, err := service.Resolve(context.Background(), ResolveInput{
		ExternalID: "kakao-123",
		Name:       "Someone Else",
	})
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if created {
		t.Fatalf("second resolve must not create")
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same account")
	}
	if second.Name != "Alice" {
		t.Fatalf("resolve must not overwrite the profile, got %s", second.Name)
	}
}

func TestResolveRejectsBlankExternalID(t *testing.T) {
	service := NewService(memory.NewStore())

	_, _, err := service.Resolve(context.Background(), ResolveInput{ExternalID: "   "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation got %v", err)
	}
}

func TestResolveFallsBackOnUnknownTimezone(t *testing.T) {
	service := NewService(memory.NewStore())

	resolved, _, err := service.Resolve(context.Background(), ResolveInput{
		ExternalID: "kakao-456",
		Timezone:   "Mars/Olympus",
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Timezone != "Asia/Seoul" {
		t.Fatalf("expected fallback timezone got %s", resolved.Timezone)
	}
}
