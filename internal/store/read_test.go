package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatest_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Latest(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.History(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChanges_EmptyForUnknownID(t *testing.T) {
	s := newTestStore(t)
	changes, err := s.Changes(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestByStatus_FiltersOnLatestOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// EXT-1 goes Portado -> Concluído; the Portado version is superseded.
	snap := baseSnapshot()
	snap.ExternalCode = "EXT-1"
	_, _, err := s.Submit(ctx, "EXT-1", "feed-a", snap)
	require.NoError(t, err)
	snap.TicketStatus = "Concluído"
	_, _, err = s.Submit(ctx, "EXT-1", "feed-a", snap)
	require.NoError(t, err)

	// EXT-2 stays Portado.
	snap2 := baseSnapshot()
	snap2.ExternalCode = "EXT-2"
	_, _, err = s.Submit(ctx, "EXT-2", "feed-a", snap2)
	require.NoError(t, err)

	entries, err := s.ByStatus(ctx, StatusFilter{TicketStatus: "Portado"})
	require.NoError(t, err)
	require.Len(t, entries, 1, "the superseded Portado version must not surface")
	assert.Equal(t, "EXT-2", entries[0].BusinessID)

	entries, err = s.ByStatus(ctx, StatusFilter{TicketStatus: "Concluído"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "EXT-1", entries[0].BusinessID)
}

func TestByStatus_CombinesConditions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := baseSnapshot()
	snap.OrderStatus = "Enviado"
	snap.LogisticsStatus = "Em trânsito"
	_, _, err := s.Submit(ctx, "EXT-1", "feed-a", snap)
	require.NoError(t, err)

	snap2 := baseSnapshot()
	snap2.OrderStatus = "Enviado"
	snap2.LogisticsStatus = "Entregue"
	_, _, err = s.Submit(ctx, "EXT-2", "feed-a", snap2)
	require.NoError(t, err)

	entries, err := s.ByStatus(ctx, StatusFilter{
		OrderStatus:     "Enviado",
		LogisticsStatus: "Entregue",
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "EXT-2", entries[0].BusinessID)
}

func TestByStatus_OrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"EXT-1", "EXT-2", "EXT-3"} {
		snap := baseSnapshot()
		snap.ExternalCode = id
		_, _, err := s.Submit(ctx, id, "feed-a", snap)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := s.ByStatus(ctx, StatusFilter{TicketStatus: "Portado", Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "EXT-3", entries[0].BusinessID, "most recently stored first")
	assert.Equal(t, "EXT-2", entries[1].BusinessID)
}

func TestByStatus_NoMatches(t *testing.T) {
	s := newTestStore(t)
	entries, err := s.ByStatus(context.Background(), StatusFilter{TicketStatus: "Inexistente"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistory_RoundTripsSnapshotFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := baseSnapshot()
	snap.CustomerName = "Maria Silva"
	snap.Address = "Rua A, 123"
	snap.City = "São Paulo"
	snap.TrackingCode = "BR123456789"
	snap.PortabilityDate = "2026-08-20"
	snap.Matched = true
	snap.RuleID = 4
	snap.WhatHappened = "portability completed"
	snap.TemplateRef = "tpl-final"

	_, _, err := s.Submit(ctx, "EXT-1", "feed-a", snap)
	require.NoError(t, err)

	history, err := s.History(ctx, "EXT-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	got := history[0].Snapshot
	assert.Equal(t, snap, got)
	assert.WithinDuration(t, time.Now(), history[0].StoredAt, 5*time.Second)
}
