package urlstate

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetParam_MissingKeyReturnsDefault(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)

	assert.Equal(t, "fallback", s.Get("city", "fallback"))
	assert.Equal(t, 7, GetParam(s, "page", 7, strconv.Atoi))
	assert.Nil(t, s.GetNumberParam("min_price", nil))
}

func TestGetParam_ParserFailureReturnsDefault(t *testing.T) {
	s, err := New("?page=abc&city=manizales")
	require.NoError(t, err)

	assert.Equal(t, 1, GetParam(s, "page", 1, strconv.Atoi))
	assert.Equal(t, "manizales", s.Get("city", ""))
}

func TestGetNumberParam(t *testing.T) {
	s, err := New("a=12.5&b=abc&c=NaN&d=Inf&e=&f=-3")
	require.NoError(t, err)

	def := 99.0
	assert.Equal(t, 12.5, *s.GetNumberParam("a", nil))
	assert.Equal(t, &def, s.GetNumberParam("b", &def))
	assert.Nil(t, s.GetNumberParam("c", nil))
	assert.Nil(t, s.GetNumberParam("d", nil))
	assert.Nil(t, s.GetNumberParam("e", nil))
	assert.Equal(t, -3.0, *s.GetNumberParam("f", nil))
}

func TestSetParams_OmitsEmptyAndReplacesWholeQuery(t *testing.T) {
	s, err := New("city=bogota&min_rooms=2")
	require.NoError(t, err)

	s.SetParams(map[string]string{"region": "caldas", "city": ""})

	snap := s.GetAllParams()
	assert.Equal(t, []string{"region"}, snap.Keys())
	assert.Equal(t, "region=caldas", s.Encode())
}

func TestSetParams_LastWriteWins(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)

	s.SetParams(map[string]string{"city": "manizales", "min_price": "100"})
	s.SetParams(map[string]string{"region": "caldas"})

	snap := s.GetAllParams()
	_, hasCity := snap.Get("city")
	assert.False(t, hasCity)
	assert.Equal(t, map[string]string{"region": "caldas"}, snap.Map())
}

func TestGetAllParams_Memoised(t *testing.T) {
	s, err := New("city=cali")
	require.NoError(t, err)

	first := s.GetAllParams()
	second := s.GetAllParams()
	assert.Equal(t, first.Version(), second.Version())

	s.SetParams(map[string]string{"city": "cali"})
	third := s.GetAllParams()
	assert.Greater(t, third.Version(), first.Version())
	assert.Equal(t, first.Map(), third.Map())
}

func TestSnapshot_IsImmutable(t *testing.T) {
	s, err := New("city=cali")
	require.NoError(t, err)

	snap := s.GetAllParams()
	m := snap.Map()
	m["city"] = "pereira"

	v, _ := s.GetAllParams().Get("city")
	assert.Equal(t, "cali", v)
}

func TestClearParams(t *testing.T) {
	s, err := New("city=cali&min_price=10")
	require.NoError(t, err)

	s.ClearParams()
	assert.Equal(t, 0, s.GetAllParams().Len())
	assert.Equal(t, "https://example.test/properties", s.URL("https://example.test/properties"))
}

func TestSubscribe_ObserversSeeWholeWrites(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []map[string]string
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap.Map())
		mu.Unlock()
	})

	s.SetParams(map[string]string{"city": "manizales", "region": "caldas"})
	s.SetParams(map[string]string{"min_rooms": "3"})
	unsubscribe()
	s.ClearParams()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, map[string]string{"city": "manizales", "region": "caldas"}, seen[0])
	assert.Equal(t, map[string]string{"min_rooms": "3"}, seen[1])
}

func TestURL(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)

	s.SetParams(map[string]string{"region": "caldas", "city": "la dorada"})
	assert.Equal(t, "http://localhost:5173/properties?city=la+dorada&region=caldas", s.URL("http://localhost:5173/properties"))
}
