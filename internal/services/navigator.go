package services

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/platform/obs"
	"delivery-schedule-bot/internal/ports"
	"fmt"
	"log"
)

// Navigator guides a chat through its itinerary one stop at a time.
//
// Each emitted stop produces the address text followed by either its
// location or a could-not-geocode notice, with exactly one geocode per stop.
// Running past the last itinerary entry destroys the session and sends only
// the completion notice.
type Navigator struct {
	registry  ports.SessionRegistry
	locator   *GeocodingClient
	messenger ports.Messenger
}

func NewNavigator(registry ports.SessionRegistry, locator *GeocodingClient, messenger ports.Messenger) *Navigator {
	return &Navigator{
		registry:  registry,
		locator:   locator,
		messenger: messenger,
	}
}

// Begin moves a ready session into the trip and emits itinerary[1].
func (n *Navigator) Begin(ctx context.Context, snap *domain.ScheduleSession) (err error) {
	defer obs.Time(ctx, "navigator.Begin")(&err)

	var stop string
	err = commitSession(ctx, n.registry, snap.ChatID, snap.ID, domain.StateItineraryReady,
		func(cur *domain.ScheduleSession) (bool, error) {
			var err error
			stop, err = cur.StartTrip()
			return false, err
		})
	if err != nil {
		return err
	}

	if err := n.messenger.SendText(ctx, snap.ChatID, msgTripStarted); err != nil {
		return fmt.Errorf("begin trip: %w", err)
	}
	return n.announce(ctx, snap.ChatID, snap.ID, stop)
}

// Next advances the trip by one stop. Once the index runs past the end of
// the itinerary the session is removed and the trip is reported complete.
func (n *Navigator) Next(ctx context.Context, snap *domain.ScheduleSession) (err error) {
	defer obs.Time(ctx, "navigator.Next")(&err)

	var (
		stop string
		done bool
	)
	err = commitSession(ctx, n.registry, snap.ChatID, snap.ID, domain.StateTripInProgress,
		func(cur *domain.ScheduleSession) (bool, error) {
			var err error
			stop, done, err = cur.Advance()
			return done, err
		})
	if err != nil {
		return err
	}

	if done {
		if err := n.messenger.SendText(ctx, snap.ChatID, msgTripComplete); err != nil {
			return fmt.Errorf("complete trip: %w", err)
		}
		return nil
	}

	if err := n.messenger.SendText(ctx, snap.ChatID, msgNextLocation); err != nil {
		return fmt.Errorf("next stop: %w", err)
	}
	return n.announce(ctx, snap.ChatID, snap.ID, stop)
}

func (n *Navigator) announce(ctx context.Context, chatID int64, sessionID, address string) error {
	if err := n.messenger.SendText(ctx, chatID, addressMsg(address)); err != nil {
		return fmt.Errorf("announce stop: %w", err)
	}

	res := n.locator.Geocode(ctx, address)

	// The trip may have been ended while the lookup was in flight.
	if !sessionActive(ctx, n.registry, chatID, sessionID) {
		log.Printf("event_id=%s chat_id=%d dropping location for ended session address=%q",
			obs.EventID(ctx), chatID, address)
		return fmt.Errorf("announce stop: %w", ports.ErrStaleSession)
	}

	if !res.Found {
		if err := n.messenger.SendText(ctx, chatID, notGeocodedMsg(address)); err != nil {
			return fmt.Errorf("announce stop: %w", err)
		}
		return nil
	}

	if err := n.messenger.SendLocation(ctx, chatID, res.Location.Lat, res.Location.Lng); err != nil {
		return fmt.Errorf("announce stop: %w", err)
	}
	return nil
}
