package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/apierrors"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

type countingLister struct {
	items []Summary
	calls int
	err   error
}

func (l *countingLister) List(context.Context) ([]Summary, error) {
	l.calls++
	return l.items, l.err
}

var (
	web1  = Summary{ID: uuid.MustParse("3f2a1c9e-8b7d-4e6f-a5b4-c3d2e1f0a9b8"), Name: "web-1", Status: "active"}
	web12 = Summary{ID: uuid.MustParse("7c6b5a49-3827-4165-9f8e-7d6c5b4a3928"), Name: "web-12", Status: "active"}
	db1   = Summary{ID: uuid.MustParse("3fbb0000-1111-4222-8333-444455556666"), Name: "db-1", Status: "stopped"}
)

func TestResolveFullIdentifierSkipsList(t *testing.T) {
	lister := &countingLister{items: []Summary{web1}}
	id := uuid.New()

	got, err := Resolve(context.Background(), KindInstance, id.String(), lister)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = Resolve(context.Background(), KindInstance, "  "+id.String()+" ", lister)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Zero(t, lister.calls)
}

func TestResolveRules(t *testing.T) {
	items := []Summary{web1, web12, db1}
	tests := []struct {
		name    string
		input   string
		want    uuid.UUID
		kind    error
		matches int
	}{
		{name: "unique id prefix", input: "7c6b", want: web12.ID},
		{name: "id prefix is case insensitive", input: "7C6B5A", want: web12.ID},
		{name: "shared id prefix is ambiguous", input: "3f", kind: apierrors.ErrAmbiguousReference, matches: 2},
		{name: "longer id prefix disambiguates", input: "3f2a", want: web1.ID},
		{name: "exact name that prefixes another name", input: "web-1", want: web1.ID},
		{name: "unique name", input: "web-12", want: web12.ID},
		{name: "partial name does not match", input: "db", kind: apierrors.ErrNotFound},
		{name: "partial name of two resources", input: "web", kind: apierrors.ErrNotFound},
		{name: "names are case sensitive", input: "DB-1", kind: apierrors.ErrNotFound},
		{name: "no match", input: "cache", kind: apierrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(context.Background(), KindInstance, tt.input, &countingLister{items: items})
			if tt.kind != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.kind)
				if tt.matches > 0 {
					var amb *apierrors.AmbiguousError
					require.ErrorAs(t, err, &amb)
					assert.Equal(t, tt.matches, amb.Count)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveIdentifierPrefixWinsOverName(t *testing.T) {
	// "abc" is the full name of one network and an identifier prefix of another
	named := Summary{ID: uuid.MustParse("11111111-2222-4333-8444-555555555555"), Name: "abc"}
	prefixed := Summary{ID: uuid.MustParse("abc11111-2222-4333-8444-555555555555"), Name: "other"}
	lister := &countingLister{items: []Summary{named, prefixed}}

	got, err := Resolve(context.Background(), KindNetwork, "abc", lister)
	require.NoError(t, err)
	assert.Equal(t, prefixed.ID, got)

	got, err = Resolve(context.Background(), KindNetwork, "ABC1", lister)
	require.NoError(t, err)
	assert.Equal(t, prefixed.ID, got)
}

func TestResolveDuplicateNamesAreAmbiguous(t *testing.T) {
	first := Summary{ID: uuid.MustParse("aaaa0000-2222-4333-8444-555555555555"), Name: "web"}
	second := Summary{ID: uuid.MustParse("bbbb0000-2222-4333-8444-555555555555"), Name: "web"}

	_, err := Resolve(context.Background(), KindInstance, "web", &countingLister{items: []Summary{first, second, web1}})
	require.Error(t, err)
	var amb *apierrors.AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, 2, amb.Count)
}

func TestResolveEmptyInput(t *testing.T) {
	lister := &countingLister{}
	_, err := Resolve(context.Background(), KindService, "  ", lister)
	assert.ErrorIs(t, err, apierrors.ErrValidation)
	assert.Zero(t, lister.calls)
}

func TestResolveListError(t *testing.T) {
	listErr := errors.New("boom")
	_, err := Resolve(context.Background(), KindService, "web", &countingLister{err: listErr})
	assert.ErrorIs(t, err, listErr)
}

func TestResolveErrorMessages(t *testing.T) {
	_, err := Resolve(context.Background(), KindNetwork, "prod", &countingLister{})
	assert.EqualError(t, err, `network "prod" not found`)

	_, err = Resolve(context.Background(), KindInstance, "3f", &countingLister{items: []Summary{web1, db1}})
	assert.Contains(t, err.Error(), "matches 2")
}

func TestFilter(t *testing.T) {
	active := Filter(&countingLister{items: []Summary{web1, db1}}, func(s Summary) bool {
		return s.Status != client.InstanceStateStopped
	})
	_, err := Resolve(context.Background(), KindInstance, "db-1", active)
	assert.ErrorIs(t, err, apierrors.ErrNotFound)

	got, err := Resolve(context.Background(), KindInstance, "3f", active)
	require.NoError(t, err)
	assert.Equal(t, web1.ID, got)
}

func TestTargets(t *testing.T) {
	targets := []client.ServiceTarget{
		{ID: uuid.MustParse("aaaa1111-2222-4333-8444-555555555555"), Group: "default"},
		{ID: uuid.MustParse("bbbb1111-2222-4333-8444-555555555555"), Group: "canary"},
	}
	got, err := Match(KindTarget, "bbbb", Targets(targets))
	require.NoError(t, err)
	assert.Equal(t, targets[1].ID, got)

	_, err = Match(KindTarget, "default", Targets(targets))
	assert.ErrorIs(t, err, apierrors.ErrNotFound, "targets have no names")
}
