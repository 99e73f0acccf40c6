package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsnow/replay-decoder/pkg/bitreader"
	"github.com/fsnow/replay-decoder/pkg/decoder"
	"github.com/fsnow/replay-decoder/pkg/netcache"
	"github.com/fsnow/replay-decoder/pkg/reader"
)

func TestCollectorCallbacks(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ChunkDone(reader.ChunkTypeReplayData, 1024, nil)
	c.ChunkDone(reader.ChunkTypeReplayData, 2048, errors.New("corrupt"))
	c.ChunkDone(reader.ChunkTypeEvent, 16, nil)

	c.FieldDone("/Script/Engine.PlayerState", decoder.FieldDecoded)
	c.FieldDone("/Script/Engine.PlayerState", decoder.FieldDecoded)
	c.FieldDone("", decoder.FieldUnresolved)

	c.DecodeDone(decoder.Stats{
		Groups:   4,
		Registry: netcache.Stats{Lookups: 10, CacheHits: 6, Scans: 3, Resolved: 2, Failed: 1},
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(c.chunks.WithLabelValues("ReplayData", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.chunks.WithLabelValues("ReplayData", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.chunks.WithLabelValues("Event", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.chunkBytes))

	assert.Equal(t, float64(2), testutil.ToFloat64(c.fields.WithLabelValues("/Script/Engine.PlayerState", "decoded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.fields.WithLabelValues("unresolved", "unresolved")))

	assert.Equal(t, float64(1), testutil.ToFloat64(c.decodes))
	assert.Equal(t, float64(10), testutil.ToFloat64(c.registryLookups))
	assert.Equal(t, float64(6), testutil.ToFloat64(c.registryCacheHits))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.registryScans))
	assert.Equal(t, float64(4), testutil.ToFloat64(c.lastGroups))
}

func TestCollectorAsObserver(t *testing.T) {
	w := bitreader.NewWriter()
	w.WritePackedUint(decoder.RecordGroup)
	w.WritePackedUint(1)
	w.WriteString("/Script/Engine.PlayerState")
	w.WritePackedUint(1)
	w.WritePackedUint(1)
	w.WriteUint32(0)
	w.WriteName("Score")
	w.WritePackedUint(decoder.RecordEnd)

	var buf bytes.Buffer
	rw, err := reader.NewWriter(&buf, &reader.Header{FriendlyName: "metrics"})
	require.NoError(t, err)
	require.NoError(t, rw.WriteReplayData(&reader.ReplayData{Data: w.Bytes()}))
	rr, err := reader.NewReader(&buf, "metrics.replay")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	c := New(reg)
	_, err = decoder.NewSession(nil, decoder.WithObserver(c)).Decode(rr)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.decodes))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.lastGroups))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.chunks.WithLabelValues("ReplayData", "ok")))
}

func TestFieldLabelsAreBounded(t *testing.T) {
	w := bitreader.NewWriter()
	for i := uint32(1); i <= 20; i++ {
		w.WritePackedUint(decoder.RecordGroup)
		w.WritePackedUint(i)
		w.WriteString(fmt.Sprintf("/Game/Mods/Custom_%d.Custom_%d_C", i, i))
		w.WritePackedUint(1)
		w.WritePackedUint(1)
		w.WriteUint32(0)
		w.WriteName("Secret")

		w.WritePackedUint(decoder.RecordActorOpen)
		w.WritePackedUint(100 + i)
		w.WritePackedUint(0)
		w.WriteBit(true)
		w.WritePackedUint(i)

		w.WritePackedUint(decoder.RecordProperties)
		w.WritePackedUint(100 + i)
		w.WriteBit(true)
		w.WritePackedUint(1)
		w.WritePackedUint(32)
		w.WriteFloat32(1)
		w.WriteBit(false)
	}
	w.WritePackedUint(decoder.RecordEnd)

	reg := prometheus.NewRegistry()
	c := New(reg)
	s := decoder.NewSession(nil, decoder.WithObserver(c))
	require.NoError(t, s.DecodeStream(w.Bytes(), 0))

	assert.Equal(t, 1, testutil.CollectAndCount(c.fields))
	assert.Equal(t, float64(20), testutil.ToFloat64(c.fields.WithLabelValues(decoder.UnknownClass, "skipped")))
}

func TestWriteText(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.DecodeDone(decoder.Stats{})

	var out bytes.Buffer
	require.NoError(t, WriteText(&out, reg))
	assert.Contains(t, out.String(), "replay_decoder_decodes_total 1")
	assert.Contains(t, out.String(), "# HELP replay_decoder_registry_scans_total")
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
