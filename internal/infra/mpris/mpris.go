// Package mpris watches the Spotify desktop player over D-Bus and sends it
// playback commands via the MPRIS interface.
package mpris

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/godbus/dbus/v5"
	zlog "github.com/rs/zerolog/log"

	"github.com/trackwarden/trackwarden/internal/domain/song"
)

const (
	mprisObjectPath     = "/org/mpris/MediaPlayer2"
	playerInterface     = "org.mpris.MediaPlayer2.Player"
	propertiesInterface = "org.freedesktop.DBus.Properties"
	metadataProperty    = playerInterface + ".Metadata"
	signalMatchRule     = "type='signal',interface='" + propertiesInterface + "',member='PropertiesChanged',path='" + mprisObjectPath + "'"

	metadataURLKey    = "xesam:url"
	metadataArtistKey = "xesam:artist"
	metadataTitleKey  = "xesam:title"
)

// Config holds the D-Bus identity of the player to watch.
type Config struct {
	// BusName is the well-known bus name of the player, e.g.
	// "org.mpris.MediaPlayer2.spotify".
	BusName string
	// URLHost restricts track URLs to a single host; metadata pointing
	// anywhere else is discarded.
	URLHost string
}

// Monitor observes track changes of one MPRIS player and can skip tracks.
//
// It holds two session bus connections: a monitor-mode connection that only
// receives PropertiesChanged signals, and a regular connection for method
// calls. A connection in monitor mode is receive-only per the D-Bus spec, so
// one connection cannot serve both roles.
type Monitor struct {
	cfg     Config
	watch   *dbus.Conn
	caller  *dbus.Conn
	signals chan *dbus.Signal
}

// NewMonitor connects to the session bus and starts receiving player
// property changes.
func NewMonitor(cfg Config) (*Monitor, error) {
	watch, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}
	if err := watch.Auth(nil); err != nil {
		watch.Close()
		return nil, errors.Wrap(err, "failed to authenticate on session bus")
	}
	if err := watch.Hello(); err != nil {
		watch.Close()
		return nil, errors.Wrap(err, "failed to register on session bus")
	}

	call := watch.BusObject().Call("org.freedesktop.DBus.Monitoring.BecomeMonitor", 0, []string{signalMatchRule}, uint32(0))
	if call.Err != nil {
		watch.Close()
		return nil, errors.Wrap(call.Err, "failed to enter monitor mode")
	}

	caller, err := dbus.SessionBus()
	if err != nil {
		watch.Close()
		return nil, errors.Wrap(err, "failed to connect to session bus")
	}

	signals := make(chan *dbus.Signal, 16)
	watch.Signal(signals)

	return &Monitor{cfg: cfg, watch: watch, caller: caller, signals: signals}, nil
}

// Close tears down the monitoring connection. The caller connection is the
// shared session bus connection and stays open.
func (m *Monitor) Close() error {
	return m.watch.Close()
}

// Events decodes incoming PropertiesChanged signals into track change events
// until ctx is cancelled. Signals that carry no usable track metadata are
// dropped silently; the player emits plenty of property changes that have
// nothing to do with the current track.
func (m *Monitor) Events(ctx context.Context, out chan<- song.NowPlayingEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-m.signals:
			if !ok {
				return
			}
			ev, ok := m.eventFromSignal(sig)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (m *Monitor) eventFromSignal(sig *dbus.Signal) (song.NowPlayingEvent, bool) {
	if sig.Name != propertiesInterface+".PropertiesChanged" || len(sig.Body) < 2 {
		return song.NowPlayingEvent{}, false
	}

	iface, ok := sig.Body[0].(string)
	if !ok || iface != playerInterface {
		return song.NowPlayingEvent{}, false
	}

	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return song.NowPlayingEvent{}, false
	}

	metadataVariant, ok := changed["Metadata"]
	if !ok {
		return song.NowPlayingEvent{}, false
	}

	metadata, ok := metadataVariant.Value().(map[string]dbus.Variant)
	if !ok {
		return song.NowPlayingEvent{}, false
	}

	return m.eventFromMetadata(metadata)
}

// eventFromMetadata extracts the current track from an MPRIS metadata dict.
// Every field is optional and loosely typed over the wire, so each lookup is
// checked rather than trusted.
func (m *Monitor) eventFromMetadata(metadata map[string]dbus.Variant) (song.NowPlayingEvent, bool) {
	url, ok := stringValue(metadata, metadataURLKey)
	if !ok || url == "" {
		return song.NowPlayingEvent{}, false
	}

	canonical, err := song.CanonicalURL(url)
	if err != nil {
		zlog.Debug().Str("url", url).Msg("ignoring unparseable track url")
		return song.NowPlayingEvent{}, false
	}
	if !m.onConfiguredHost(canonical) {
		zlog.Debug().Str("url", canonical).Msg("ignoring track url on foreign host")
		return song.NowPlayingEvent{}, false
	}

	ev := song.NowPlayingEvent{URL: canonical}
	ev.Title, _ = stringValue(metadata, metadataTitleKey)

	if artists, ok := stringSliceValue(metadata, metadataArtistKey); ok && len(artists) > 0 {
		ev.Artist = strings.Join(artists, ", ")
	}

	return ev, true
}

func (m *Monitor) onConfiguredHost(url string) bool {
	rest, ok := strings.CutPrefix(url, "https://")
	if !ok {
		return false
	}
	return strings.HasPrefix(rest, m.cfg.URLHost+"/")
}

// CurrentSong queries the player for the track it is playing right now.
func (m *Monitor) CurrentSong() (song.NowPlayingEvent, error) {
	obj := m.caller.Object(m.cfg.BusName, mprisObjectPath)
	variant, err := obj.GetProperty(metadataProperty)
	if err != nil {
		return song.NowPlayingEvent{}, errors.Wrap(err, "failed to read player metadata")
	}

	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return song.NowPlayingEvent{}, errors.New("player metadata has unexpected shape")
	}

	ev, ok := m.eventFromMetadata(metadata)
	if !ok {
		return song.NowPlayingEvent{}, errors.New("player reported no current track")
	}
	return ev, nil
}

// Next asks the player to skip to the next track.
func (m *Monitor) Next() error {
	obj := m.caller.Object(m.cfg.BusName, mprisObjectPath)
	if call := obj.Call(playerInterface+".Next", 0); call.Err != nil {
		return errors.Wrap(call.Err, "failed to skip track")
	}
	return nil
}

func stringValue(metadata map[string]dbus.Variant, key string) (string, bool) {
	variant, ok := metadata[key]
	if !ok {
		return "", false
	}
	value, ok := variant.Value().(string)
	return value, ok
}

func stringSliceValue(metadata map[string]dbus.Variant, key string) ([]string, bool) {
	variant, ok := metadata[key]
	if !ok {
		return nil, false
	}
	value, ok := variant.Value().([]string)
	return value, ok
}
