package songs

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keshon/tunequiz/internal/prefs"
)

func catalogOf(list ...Song) *Catalog {
	return NewCatalog(list)
}

func testCatalogSong(id string, gender prefs.Gender, year int, views int64) Song {
	return Song{
		VideoID:     id,
		Title:       "Song " + id,
		Artist:      "Artist " + id,
		Gender:      gender,
		PublishedAt: time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC),
		Views:       views,
		DurationSec: 200,
	}
}

func newTestSelector(songs ...Song) *Selector {
	return NewSelector(catalogOf(songs...), rand.New(rand.NewSource(11)))
}

func TestSelector_ReloadAppliesGenderFilter(t *testing.T) {
	sel := newTestSelector(
		testCatalogSong("m1", prefs.GenderMale, 2020, 100),
		testCatalogSong("f1", prefs.GenderFemale, 2020, 100),
		testCatalogSong("f2", prefs.GenderFemale, 2020, 100),
	)

	p := prefs.Default()
	p.Genders = []prefs.Gender{prefs.GenderFemale}
	require.NoError(t, sel.Reload(p, true))
	require.Equal(t, 2, sel.Count())

	for i := 0; i < 2; i++ {
		song, err := sel.QueryRandom(p)
		require.NoError(t, err)
		require.NotNil(t, song)
		require.Equal(t, prefs.GenderFemale, song.Gender)
	}
}

func TestSelector_ReloadAppliesYearRange(t *testing.T) {
	sel := newTestSelector(
		testCatalogSong("old", prefs.GenderCoed, 1998, 100),
		testCatalogSong("mid", prefs.GenderCoed, 2015, 100),
		testCatalogSong("new", prefs.GenderCoed, 2024, 100),
	)

	p := prefs.Default()
	p.BeginningYear = 2010
	p.EndYear = 2020
	require.NoError(t, sel.Reload(p, true))
	require.Equal(t, 1, sel.Count())

	song, err := sel.QueryRandom(p)
	require.NoError(t, err)
	require.Equal(t, "mid", song.VideoID)
}

func TestSelector_EmptyFilterPool(t *testing.T) {
	sel := newTestSelector(testCatalogSong("a", prefs.GenderMale, 2020, 100))

	p := prefs.Default()
	p.Genders = []prefs.Gender{prefs.GenderFemale}
	require.ErrorIs(t, sel.Reload(p, true), ErrEmptyPool)

	_, err := sel.QueryRandom(p)
	require.ErrorIs(t, err, ErrEmptyPool)
}

func TestSelector_UniqueQueueExhaustsAndResets(t *testing.T) {
	sel := newTestSelector(
		testCatalogSong("a", prefs.GenderCoed, 2020, 10),
		testCatalogSong("b", prefs.GenderCoed, 2020, 10),
	)

	p := prefs.Default()
	require.NoError(t, sel.Reload(p, true))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		song, err := sel.QueryRandom(p)
		require.NoError(t, err)
		require.NotNil(t, song)
		require.False(t, seen[song.VideoID], "song repeated before exhaustion")
		seen[song.VideoID] = true
	}

	require.True(t, sel.UniqueExhausted())
	song, err := sel.QueryRandom(p)
	require.NoError(t, err)
	require.Nil(t, song)

	sel.ResetUnique()
	require.False(t, sel.UniqueExhausted())
	song, err = sel.QueryRandom(p)
	require.NoError(t, err)
	require.NotNil(t, song)
}

func TestSelector_FreeTierCapsPool(t *testing.T) {
	list := make([]Song, 0, freeTierLimit+50)
	for i := 0; i < freeTierLimit+50; i++ {
		list = append(list, testCatalogSong(idFor(i), prefs.GenderCoed, 2020, int64(i)))
	}
	sel := newTestSelector(list...)

	p := prefs.Default()
	p.Limit = 0 // "all songs" still capped without premium
	require.NoError(t, sel.Reload(p, false))
	require.Equal(t, freeTierLimit, sel.Count())

	require.NoError(t, sel.Reload(p, true))
	require.Equal(t, freeTierLimit+50, sel.Count())
}

func idFor(i int) string {
	const chars = "abcdefghijklmnopqrstuvwxyz"
	return string([]byte{chars[i%26], chars[(i/26)%26], chars[(i/676)%26]})
}

func TestSelector_AlternateGender(t *testing.T) {
	sel := newTestSelector(
		testCatalogSong("m1", prefs.GenderMale, 2020, 100),
		testCatalogSong("m2", prefs.GenderMale, 2020, 100),
		testCatalogSong("f1", prefs.GenderFemale, 2020, 100),
		testCatalogSong("f2", prefs.GenderFemale, 2020, 100),
	)

	p := prefs.Default()
	p.AlternateGender = true
	require.NoError(t, sel.Reload(p, true))

	var last prefs.Gender
	for i := 0; i < 4; i++ {
		song, err := sel.QueryRandom(p)
		require.NoError(t, err)
		require.NotNil(t, song)
		if last != "" {
			require.NotEqual(t, last, song.Gender, "draw %d should alternate", i)
		}
		last = song.Gender
	}
}

func TestSelector_QueryRandomNExcludesTarget(t *testing.T) {
	sel := newTestSelector(
		testCatalogSong("a", prefs.GenderCoed, 2020, 10),
		testCatalogSong("b", prefs.GenderCoed, 2020, 10),
		testCatalogSong("c", prefs.GenderCoed, 2020, 10),
		testCatalogSong("d", prefs.GenderCoed, 2020, 10),
	)

	p := prefs.Default()
	require.NoError(t, sel.Reload(p, true))

	target, err := sel.QueryRandom(p)
	require.NoError(t, err)

	decoys := sel.QueryRandomN(3, target)
	require.Len(t, decoys, 3)
	for _, d := range decoys {
		require.NotEqual(t, target.VideoID, d.VideoID)
	}

	// Decoy draws never consume the unique queue.
	require.False(t, sel.UniqueExhausted())
}

func TestSelector_QueryRandomNShortPool(t *testing.T) {
	sel := newTestSelector(
		testCatalogSong("a", prefs.GenderCoed, 2020, 10),
		testCatalogSong("b", prefs.GenderCoed, 2020, 10),
	)
	require.NoError(t, sel.Reload(prefs.Default(), true))

	decoys := sel.QueryRandomN(5, nil)
	require.Len(t, decoys, 2)
}
