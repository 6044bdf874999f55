package rules

import (
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfcamargo/portatrack/internal/testutil"
)

func TestMatcher_WildcardMatchesAnything(t *testing.T) {
	repo, _ := newTestRepo(t, [][]string{
		// Only the ticket status is constrained; everything else wildcard.
		testutil.Row("1", "Portabilidade Cancelada", "", "", "", "", "", "cancelled", "archive", "AVISO"),
	})
	m := NewMatcher(repo)

	for _, carrier := range []string{"", "Vivo", "Claro", "qualquer coisa"} {
		res := m.Match(MatchKeys{TicketStatus: "Portabilidade Cancelada", DonorCarrier: carrier})
		require.True(t, res.Matched, "carrier %q", carrier)
		assert.Equal(t, 1, res.Rule.ID)
	}
}

func TestMatcher_AllWildcardRuleMatchesEveryRecord(t *testing.T) {
	repo, _ := newTestRepo(t, [][]string{
		testutil.Row("1", "", "", "", "", "", "", "catch all", "review", "PENDENTE"),
	})
	m := NewMatcher(repo)

	res := m.Match(MatchKeys{TicketStatus: "nunca visto", DonorCarrier: "Oi"})
	require.True(t, res.Matched)
	assert.Equal(t, 1, res.Rule.ID)
}

func TestMatcher_ConcretePredicateRejectsMismatch(t *testing.T) {
	repo, _ := newTestRepo(t, [][]string{
		testutil.Row("1", "Portabilidade Cancelada", "Vivo", "", "", "", "", "x", "x", "x"),
	})
	m := NewMatcher(repo)

	res := m.Match(MatchKeys{TicketStatus: "Portabilidade Cancelada", DonorCarrier: "Claro"})
	assert.False(t, res.Matched)
}

func TestMatcher_ComparisonIsCaseAndSpaceInsensitive(t *testing.T) {
	repo, _ := newTestRepo(t, [][]string{
		testutil.Row("1", "Portabilidade Cancelada", "Vivo", "", "", "", "", "x", "x", "x"),
	})
	m := NewMatcher(repo)

	res := m.Match(MatchKeys{TicketStatus: "  portabilidade cancelada ", DonorCarrier: "VIVO"})
	assert.True(t, res.Matched)
}

func TestMatcher_SubstringMatchEitherDirection(t *testing.T) {
	repo, _ := newTestRepo(t, [][]string{
		testutil.Row("1", "", "", "", "", "", "Cliente sem cadastro", "no registration", "create it", "AVISO"),
	})
	m := NewMatcher(repo)

	// Rule value is a substring of the record value.
	res := m.Match(MatchKeys{UnqueriedReason: "Cliente sem cadastro no sistema de origem"})
	assert.True(t, res.Matched)

	// Record value is a substring of the rule value.
	res = m.Match(MatchKeys{UnqueriedReason: "sem cadastro"})
	assert.True(t, res.Matched)

	// Empty record value never satisfies a constrained free-text field.
	res = m.Match(MatchKeys{UnqueriedReason: ""})
	assert.False(t, res.Matched)
}

func TestMatcher_BooleanPredicate(t *testing.T) {
	repo, _ := newTestRepo(t, [][]string{
		testutil.Row("1", "", "", "", "", "Sim", "", "last ticket", "prioritize", "ALERTA"),
	})
	m := NewMatcher(repo)

	res := m.Match(MatchKeys{LastTicket: testutil.BoolPtr(true)})
	assert.True(t, res.Matched)

	res = m.Match(MatchKeys{LastTicket: testutil.BoolPtr(false)})
	assert.False(t, res.Matched)

	// A record that does not say is not rejected by the concrete rule.
	res = m.Match(MatchKeys{})
	assert.True(t, res.Matched)
}

func TestMatcher_LoadOrderTieBreak(t *testing.T) {
	// Both rules match the same record; the earlier row wins even though
	// the later one is more specific.
	repo, _ := newTestRepo(t, [][]string{
		testutil.Row("1", "Portabilidade Cancelada", "", "", "", "", "", "first", "first", "x"),
		testutil.Row("2", "Portabilidade Cancelada", "Vivo", "", "", "", "", "second", "second", "x"),
	})
	m := NewMatcher(repo)

	res := m.Match(MatchKeys{TicketStatus: "Portabilidade Cancelada", DonorCarrier: "Vivo"})
	require.True(t, res.Matched)
	assert.Equal(t, 1, res.Rule.ID)
}

func TestMatcher_SpecificBucketBeforeWildcardBucket(t *testing.T) {
	repo, _ := newTestRepo(t, [][]string{
		testutil.Row("1", "", "", "", "", "", "", "wildcard", "wildcard", "x"),
		testutil.Row("2", "Portado", "", "", "", "", "", "specific", "specific", "x"),
	})
	m := NewMatcher(repo)

	// The status bucket is scanned before the wildcard bucket, so the
	// row-2 rule wins despite coming later in the file.
	res := m.Match(MatchKeys{TicketStatus: "Portado"})
	require.True(t, res.Matched)
	assert.Equal(t, 2, res.Rule.ID)
}

func TestMatcher_Determinism(t *testing.T) {
	repo, _ := newTestRepo(t, [][]string{
		testutil.Row("1", "Portado", "", "", "", "", "", "a", "a", "a"),
		testutil.Row("2", "Portado", "Vivo", "", "", "", "", "b", "b", "b"),
		testutil.Row("3", "", "", "", "", "", "", "c", "c", "c"),
	})
	m := NewMatcher(repo)

	keys := MatchKeys{TicketStatus: "Portado", DonorCarrier: "Vivo"}
	first := m.Match(keys)
	for i := 0; i < 10; i++ {
		again := m.Match(keys)
		assert.Equal(t, first.Matched, again.Matched)
		assert.Equal(t, first.Rule.ID, again.Rule.ID)
	}
}

func TestMatcher_CachesMisses(t *testing.T) {
	repo, _ := newTestRepo(t, [][]string{
		testutil.Row("1", "Portado", "", "", "", "", "", "a", "a", "a"),
	})
	m := NewMatcher(repo)

	keys := MatchKeys{TicketStatus: "Conflito"}
	res := m.Match(keys)
	assert.False(t, res.Matched)
	assert.Equal(t, 1, m.CacheSize())

	res = m.Match(keys)
	assert.False(t, res.Matched)
	assert.Equal(t, 1, m.CacheSize())
}

func TestMatcher_CacheClearedOnReload(t *testing.T) {
	repo, path := newTestRepo(t, [][]string{
		testutil.Row("1", "Portado", "", "", "", "", "", "old outcome", "old", "x"),
	})
	m := NewMatcher(repo)

	keys := MatchKeys{TicketStatus: "Conflito"}
	res := m.Match(keys)
	require.False(t, res.Matched, "no rule for Conflito yet")

	testutil.WriteRuleTable(t, tableDir(path), [][]string{
		testutil.Row("1", "Portado", "", "", "", "", "", "old outcome", "old", "x"),
		testutil.Row("2", "Conflito", "", "", "", "", "", "new outcome", "new", "x"),
	})
	bumpMtime(t, path)

	reloaded, err := repo.ReloadIfChanged()
	require.NoError(t, err)
	require.True(t, reloaded)

	res = m.Match(keys)
	require.True(t, res.Matched, "stale cached miss must be re-evaluated")
	assert.Equal(t, 2, res.Rule.ID)
}

func TestMatcher_EmptyIndexFallsBackToAllRules(t *testing.T) {
	repo, _ := newTestRepo(t, [][]string{
		testutil.Row("1", "Portado", "Vivo", "", "", "", "", "a", "a", "a"),
		testutil.Row("2", "Conflito", "", "", "", "", "", "b", "b", "b"),
	})

	// No bucket matches "Suspensa" and there is no wildcard bucket, so
	// the full rule set is the candidate list; nothing matches anyway
	// because the candidate predicates disagree on ticket status.
	m := NewMatcher(repo)
	res := m.Match(MatchKeys{TicketStatus: "Suspensa"})
	assert.False(t, res.Matched)
}

func TestMatcher_ConcurrentMatches(t *testing.T) {
	rows := [][]string{
		testutil.Row("1", "Portado", "", "", "", "", "", "a", "a", "a"),
		testutil.Row("2", "Conflito", "", "", "", "", "", "b", "b", "b"),
		testutil.Row("3", "", "", "", "", "", "", "c", "c", "c"),
	}
	repo, _ := newTestRepo(t, rows)
	m := NewMatcher(repo)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				status := []string{"Portado", "Conflito", fmt.Sprintf("outro-%d", g)}[i%3]
				m.Match(MatchKeys{TicketStatus: status})
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "portabilidade cancelada", normalizeKey("  Portabilidade Cancelada "))
	assert.Equal(t, normalizeKey("CONCLUÍDO"), normalizeKey("concluído"))
}

func TestMatchKeys_CacheKeyDistinguishesLastTicket(t *testing.T) {
	base := MatchKeys{TicketStatus: "Portado"}
	withTrue := base
	withTrue.LastTicket = testutil.BoolPtr(true)
	withFalse := base
	withFalse.LastTicket = testutil.BoolPtr(false)

	assert.NotEqual(t, base.CacheKey(), withTrue.CacheKey())
	assert.NotEqual(t, withTrue.CacheKey(), withFalse.CacheKey())
	assert.Equal(t, base.CacheKey(), MatchKeys{TicketStatus: "portado "}.CacheKey(),
		"normalized tuples share a cache entry")
}

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	os.Exit(m.Run())
}
