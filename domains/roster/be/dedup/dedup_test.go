package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Ixotic27/certifyhub/domains/roster/be/csvimport"
)

type lookupStub struct {
	persisted map[string]struct{}
	calls     int
	lastIDs   []string
	lastTpl   *uuid.UUID
	err       error
}

func (l *lookupStub) ExistingStudentIDs(_ context.Context, _ uuid.UUID, templateID *uuid.UUID, ids []string) (map[string]struct{}, error) {
	l.calls++
	l.lastIDs = ids
	l.lastTpl = templateID
	if l.err != nil {
		return nil, l.err
	}
	out := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := l.persisted[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func rows(ids ...string) []csvimport.Row {
	out := make([]csvimport.Row, 0, len(ids))
	for i, id := range ids {
		out = append(out, csvimport.Row{Line: i + 2, Name: "Person " + id, StudentID: id})
	}
	return out
}

func TestPartitionWithinBatchCollision(t *testing.T) {
	t.Parallel()

	data := []byte("Full Name,Roll No,E-Mail\nJane Doe,S1,jane@example.com\nJane Again,S1,jane2@example.com\n")
	parsed, err := csvimport.Parse(data)
	require.NoError(t, err)

	lookup := &lookupStub{}
	result, err := Partition(context.Background(), lookup, parsed, Scope{ClubID: uuid.New()})
	require.NoError(t, err)
	require.Len(t, result.New, 1)
	require.Len(t, result.Duplicates, 1)
	require.Equal(t, "Jane Doe", result.New[0].Name)
	require.Equal(t, "Jane Again", result.Duplicates[0].Name)
	require.Equal(t, []string{"S1"}, lookup.lastIDs)
}

func TestPartitionAgainstPersistedIdentifiers(t *testing.T) {
	t.Parallel()

	lookup := &lookupStub{persisted: map[string]struct{}{"S2": {}}}
	result, err := Partition(context.Background(), lookup, rows("S1", "S2", "S3", "S1"), Scope{ClubID: uuid.New()})
	require.NoError(t, err)
	require.Equal(t, 1, lookup.calls)
	require.Equal(t, []string{"S1", "S2", "S3"}, lookup.lastIDs)

	require.Equal(t, []string{"S1", "S3"}, studentIDs(result.New))
	require.Equal(t, []string{"S2", "S1"}, studentIDs(result.Duplicates))
}

func TestPartitionIsIdempotent(t *testing.T) {
	t.Parallel()

	lookup := &lookupStub{persisted: map[string]struct{}{"S4": {}}}
	scope := Scope{ClubID: uuid.New()}
	input := rows("S1", "S4", "S2", "S2", "S3", "S1")

	first, err := Partition(context.Background(), lookup, input, scope)
	require.NoError(t, err)

	second, err := Partition(context.Background(), lookup, first.New, scope)
	require.NoError(t, err)
	require.Equal(t, first.New, second.New)
	require.Empty(t, second.Duplicates)
}

func TestPartitionEmptyInputSkipsLookup(t *testing.T) {
	t.Parallel()

	lookup := &lookupStub{}
	result, err := Partition(context.Background(), lookup, nil, Scope{ClubID: uuid.New()})
	require.NoError(t, err)
	require.Empty(t, result.New)
	require.Empty(t, result.Duplicates)
	require.Zero(t, lookup.calls)
}

func TestPartitionPropagatesLookupErrors(t *testing.T) {
	t.Parallel()

	lookup := &lookupStub{err: errors.New("db down")}
	_, err := Partition(context.Background(), lookup, rows("S1"), Scope{ClubID: uuid.New()})
	require.ErrorContains(t, err, "db down")
}

func TestNewScopeNarrowsOnlyInTemplateMode(t *testing.T) {
	t.Parallel()

	club := uuid.New()
	tpl := uuid.New()

	require.Nil(t, NewScope(ScopeClub, club, &tpl).TemplateID)
	require.Nil(t, NewScope(ScopeTemplate, club, nil).TemplateID)
	require.Equal(t, tpl, *NewScope(ScopeTemplate, club, &tpl).TemplateID)

	mode, err := ParseScopeMode("TEMPLATE")
	require.NoError(t, err)
	require.Equal(t, ScopeTemplate, mode)
	_, err = ParseScopeMode("import")
	require.Error(t, err)
}

func studentIDs(in []csvimport.Row) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		out = append(out, r.StudentID)
	}
	return out
}
