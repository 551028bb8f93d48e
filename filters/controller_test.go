package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scooby/models"
	"scooby/urlstate"
)

func newController(t *testing.T, query string) (*Controller, *urlstate.Store) {
	t.Helper()
	store, err := urlstate.New(query)
	require.NoError(t, err)
	return NewController(store), store
}

func TestNewController_SeedsDraftFromURL(t *testing.T) {
	c, _ := newController(t, "city=manizales&min_price=150000000&min_rooms=oops")

	draft := c.Draft()
	assert.Equal(t, "manizales", draft.City)
	require.NotNil(t, draft.MinPrice)
	assert.Equal(t, 150000000.0, *draft.MinPrice)
	assert.Nil(t, draft.MinRooms)
	assert.Equal(t, StateIdle, c.State())
}

func TestHandleChange_UpdatesDraftOnly(t *testing.T) {
	c, store := newController(t, "")

	require.NoError(t, c.HandleChange(FieldCity, "pereira"))
	require.NoError(t, c.HandleChange(FieldMaxPrice, "500000000"))

	assert.Equal(t, "pereira", c.Draft().City)
	assert.Equal(t, 0, store.GetAllParams().Len())
	assert.Equal(t, StateEditing, c.State())
	assert.False(t, c.HasActiveFilters())
	assert.Equal(t, 2, c.ActiveFilterCount())
}

func TestHandleChange_NumericCoercion(t *testing.T) {
	c, _ := newController(t, "min_bathrooms=2")

	require.NoError(t, c.HandleChange(FieldMinBathrooms, ""))
	assert.Nil(t, c.Draft().MinBathrooms)

	require.NoError(t, c.HandleChange(FieldMinRooms, "three"))
	assert.Nil(t, c.Draft().MinRooms)

	require.NoError(t, c.HandleChange(FieldMinRooms, " 3 "))
	require.NotNil(t, c.Draft().MinRooms)
	assert.Equal(t, 3.0, *c.Draft().MinRooms)

	require.NoError(t, c.HandleChange(FieldMinPrice, "NaN"))
	assert.Nil(t, c.Draft().MinPrice)
}

func TestHandleChange_UnknownField(t *testing.T) {
	c, _ := newController(t, "")
	assert.Error(t, c.HandleChange(Field("sort"), "price"))
}

func TestApply_CommitsDraftAndDropsPagination(t *testing.T) {
	c, store := newController(t, "city=cali&skip=40&limit=20")

	require.NoError(t, c.HandleChange(FieldRegion, "valle"))
	require.NoError(t, c.HandleChange(FieldMinRooms, "2"))
	c.Apply()

	assert.Equal(t, "city=cali&min_rooms=2&region=valle", store.Encode())
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, c.HasActiveFilters())
}

func TestClear_RemovesAllParams(t *testing.T) {
	c, store := newController(t, "city=cali&min_price=10&skip=20")

	c.Clear()

	assert.Equal(t, "", store.Encode())
	assert.True(t, c.Draft().IsEmpty())
	assert.False(t, c.HasActiveFilters())
	assert.Equal(t, StateIdle, c.State())
}

func TestRoundTrip(t *testing.T) {
	records := []models.FilterRecord{
		{},
		{City: "manizales", Region: "caldas", PropertyType: "casas"},
		{MinPrice: models.Float(0), MaxPrice: models.Float(1.5e9)},
		{City: "bogotá d.c.", MinRooms: models.Float(3), MinBathrooms: models.Float(2.5)},
		{PropertyType: "casas-campestres", MinPrice: models.Float(-1), MaxPrice: models.Float(0.1)},
	}

	for _, want := range records {
		store, err := urlstate.New("")
		require.NoError(t, err)

		store.SetParams(want.Params())
		got := FromStore(store)

		assert.True(t, want.Equal(got), "want %+v got %+v", want.Params(), got.Params())
		assert.Equal(t, want.City, got.City)
		if want.MaxPrice != nil {
			assert.Equal(t, *want.MaxPrice, *got.MaxPrice)
		}
	}
}
