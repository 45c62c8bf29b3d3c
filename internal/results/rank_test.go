package results

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coral_detector/internal/catalog"
	"coral_detector/internal/detection"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]string{"Acanthastrea echinata", "Acropora abrotanoides", "Acropora cervicornis"})
	require.NoError(t, err)
	return c
}

func labeled(name string, conf float32) detection.LabeledDetection {
	return detection.LabeledDetection{Detection: detection.Detection{Confidence: conf}, Name: name}
}

func TestResolveLabels(t *testing.T) {
	c := testCatalog(t)
	dets := []detection.Detection{
		{ClassID: 2, Confidence: 0.1},
		{ClassID: 0, Confidence: 0.9},
		{ClassID: 3, Confidence: 0.5},
		{ClassID: -1, Confidence: 0.4},
		{ClassID: 999, Confidence: 0.8},
	}

	got := ResolveLabels(dets, c)
	require.Len(t, got, len(dets))

	want := []string{"Acropora cervicornis", "Acanthastrea echinata", detection.Unknown, detection.Unknown, detection.Unknown}
	for i := range got {
		assert.Equal(t, want[i], got[i].Name)
		assert.Equal(t, dets[i], got[i].Detection, "order and detection must be preserved")
	}

	assert.Empty(t, ResolveLabels(nil, c))
}

func TestResolveLabelsEveryIndex(t *testing.T) {
	c := catalog.Default()
	for id := -5; id < c.Len()+5; id++ {
		got := ResolveLabels([]detection.Detection{{ClassID: id}}, c)[0].Name
		if id >= 0 && id < c.Len() {
			assert.Equal(t, c.Names()[id], got)
		} else {
			assert.Equal(t, detection.Unknown, got)
		}
	}
}

func TestFilterKnownSpecies(t *testing.T) {
	c := testCatalog(t)
	in := []detection.LabeledDetection{
		labeled("Acropora abrotanoides", 0.3),
		labeled(detection.Unknown, 0.9),
		labeled("Homo sapiens", 0.8),
		labeled("Acanthastrea echinata", 0.6),
	}

	once := FilterKnownSpecies(in, c)
	assert.Equal(t, []detection.LabeledDetection{in[0], in[3]}, once)
	assert.Equal(t, once, FilterKnownSpecies(once, c), "filter must be idempotent")

	assert.Empty(t, FilterKnownSpecies(nil, c))
	assert.Empty(t, FilterKnownSpecies([]detection.LabeledDetection{labeled(detection.Unknown, 1)}, c))
}

func TestSelectBest(t *testing.T) {
	_, ok := SelectBest(nil)
	assert.False(t, ok)

	in := []detection.LabeledDetection{
		labeled("a", 0.2),
		labeled("b", 0.75),
		labeled("c", 0.5),
		labeled("d", 0.75),
	}
	best, ok := SelectBest(in)
	require.True(t, ok)
	assert.Equal(t, "b", best.Name, "ties go to the first in input order")
	assert.Equal(t, float32(0.75), best.Confidence)
}

func TestSelectBestRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 1; n < 50; n++ {
		in := make([]detection.LabeledDetection, n)
		var max float32
		for i := range in {
			in[i] = labeled(string(rune('a'+i%26)), float32(rng.Intn(10))/10)
			if in[i].Confidence > max {
				max = in[i].Confidence
			}
		}

		best, ok := SelectBest(in)
		require.True(t, ok)
		assert.Equal(t, max, best.Confidence)
		assert.Contains(t, in, best)
	}
}

func TestRankDescending(t *testing.T) {
	in := []detection.LabeledDetection{
		labeled("a", 0.2),
		labeled("b", 0.75),
		labeled("c", 0.9),
		labeled("d", 0.75),
		labeled("e", 0.2),
	}
	snapshot := append([]detection.LabeledDetection(nil), in...)

	got := RankDescending(in)
	names := make([]string, len(got))
	for i, d := range got {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"c", "b", "d", "a", "e"}, names)
	assert.Equal(t, snapshot, in, "input must not be reordered")
	assert.Empty(t, RankDescending(nil))
}

func TestRankDescendingMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	in := make([]detection.LabeledDetection, 200)
	for i := range in {
		in[i] = labeled(string(rune('a'+i%26)), float32(rng.Intn(20))/20)
		in[i].ClassID = i
	}

	got := RankDescending(in)
	require.Len(t, got, len(in))
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence)
		if got[i-1].Confidence == got[i].Confidence {
			assert.Less(t, got[i-1].ClassID, got[i].ClassID, "equal confidences must keep input order")
		}
	}
}

func TestFormatConfidence(t *testing.T) {
	assert.Equal(t, "0.92", FormatConfidence(0.92))
	assert.Equal(t, "1.00", FormatConfidence(1))
	assert.Equal(t, "0.00", FormatConfidence(0))
	assert.Equal(t, "0.13", FormatConfidence(0.125001))
}
