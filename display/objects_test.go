package display

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobiasjakobi/mfcplay/drm"
)

type modeInfoFixture struct {
	w, h uint16
}

func toModeInfos(fixtures []modeInfoFixture) []drm.ModeInfo {
	modes := make([]drm.ModeInfo, len(fixtures))
	for i, f := range fixtures {
		modes[i] = drm.ModeInfo{HDisplay: f.w, VDisplay: f.h}
	}
	return modes
}

func TestLetterboxMatchingAspect(t *testing.T) {
	w, h, x, y := letterbox(1920, 1080, 1920, 1080)
	assert.Equal(t, uint32(1920), w)
	assert.Equal(t, uint32(1080), h)
	assert.Equal(t, uint32(0), x)
	assert.Equal(t, uint32(0), y)
}

func TestLetterboxNarrowerVideoPillarboxes(t *testing.T) {
	// 4:3 content on a 16:9 mode: height fills, width shrinks and centers.
	w, h, x, y := letterbox(1920, 1080, 640, 480)
	assert.Equal(t, uint32(1080), h)
	assert.Less(t, w, uint32(1920))
	assert.Equal(t, (1920-w)/2, x)
	assert.Equal(t, uint32(0), y)
}

func TestLetterboxWiderVideoLetterboxes(t *testing.T) {
	// 21:9 content on a 16:9 mode: width fills, height shrinks and centers.
	w, h, x, y := letterbox(1920, 1080, 2560, 1080)
	assert.Equal(t, uint32(1920), w)
	assert.Less(t, h, uint32(1080))
	assert.Equal(t, uint32(0), x)
	assert.Equal(t, (1080-h)/2, y)
}

func TestOverlayGeometryCenters(t *testing.T) {
	x, y := overlayGeometry(1920, 1080, overlayWidth, overlayHeight)
	assert.Equal(t, (1920-overlayWidth*2)/2, x)
	assert.Equal(t, (1080-overlayHeight*2)/2, y)
}

func TestOverlayGeometryClampsOnTinyMode(t *testing.T) {
	x, y := overlayGeometry(overlayWidth, overlayHeight, overlayWidth, overlayHeight)
	assert.Equal(t, uint32(0), x)
	assert.Equal(t, uint32(0), y)
}

func TestConnectorTypeMatches(t *testing.T) {
	assert.True(t, ConnectorAny.matches(11))
	assert.True(t, ConnectorHDMI.matches(11))
	assert.True(t, ConnectorHDMI.matches(12))
	assert.False(t, ConnectorHDMI.matches(3))
	assert.True(t, ConnectorVGA.matches(1))
	assert.False(t, ConnectorVGA.matches(11))
}

func TestSelectModeDefaultsToNative(t *testing.T) {
	modes := []modeInfoFixture{{1920, 1080}, {1280, 720}}
	m, err := selectMode(toModeInfos(modes), 0, 0)
	assert.NoError(t, err)
	assert.EqualValues(t, 1920, m.HDisplay)
}

func TestSelectModeRequestedResolution(t *testing.T) {
	modes := []modeInfoFixture{{1920, 1080}, {1280, 720}}
	m, err := selectMode(toModeInfos(modes), 1280, 720)
	assert.NoError(t, err)
	assert.EqualValues(t, 1280, m.HDisplay)
}

func TestSelectModeMissingResolutionErrors(t *testing.T) {
	modes := []modeInfoFixture{{1920, 1080}}
	_, err := selectMode(toModeInfos(modes), 640, 480)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestSelectModeNoModesErrors(t *testing.T) {
	_, err := selectMode(nil, 0, 0)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}
