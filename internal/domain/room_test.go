package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edgemeet/huddle/internal/domain"
)

func TestParseRoomID(t *testing.T) {
	id, err := domain.ParseRoomID("daily-standup")
	require.NoError(t, err)
	require.Equal(t, domain.RoomID("daily-standup"), id)

	_, err = domain.ParseRoomID("")
	require.ErrorIs(t, err, domain.ErrRoomIDEmpty)

	_, err = domain.ParseRoomID(strings.Repeat("x", domain.MaxRoomIDLen+1))
	require.ErrorIs(t, err, domain.ErrRoomIDTooLong)

	_, err = domain.ParseRoomID(strings.Repeat("x", domain.MaxRoomIDLen))
	require.NoError(t, err)
}

func TestParsePeerID(t *testing.T) {
	id, err := domain.ParsePeerID("alice")
	require.NoError(t, err)
	require.Equal(t, domain.PeerID("alice"), id)

	_, err = domain.ParsePeerID("")
	require.ErrorIs(t, err, domain.ErrPeerIDEmpty)

	_, err = domain.ParsePeerID(strings.Repeat("x", domain.MaxPeerIDLen+1))
	require.ErrorIs(t, err, domain.ErrPeerIDTooLong)
}

func TestMediaKind(t *testing.T) {
	require.True(t, domain.MediaKindAudio.Valid())
	require.True(t, domain.MediaKindVideo.Valid())
	require.False(t, domain.MediaKind("smell").Valid())
}

func TestAppData(t *testing.T) {
	require.True(t, domain.AppData{"mediaType": "screen"}.IsScreenShare())
	require.False(t, domain.AppData{"mediaType": "camera"}.IsScreenShare())
	require.False(t, domain.AppData(nil).IsScreenShare())
	require.Empty(t, domain.AppData{"mediaType": 42}.MediaType())
}

func TestNewRoomRecord(t *testing.T) {
	a := domain.NewRoomRecord("standup")
	b := domain.NewRoomRecord("standup")
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, "standup", a.Name)
	require.False(t, a.CreatedAt.IsZero())
}
