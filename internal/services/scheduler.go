package services

import (
	"context"
	"delivery-schedule-bot/internal/domain"
	"delivery-schedule-bot/internal/platform/metrics"
	"delivery-schedule-bot/internal/platform/obs"
	"delivery-schedule-bot/internal/ports"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Kind of inbound chat event.
type EventKind int

const (
	EventStart EventKind = iota
	EventNewSchedule
	EventText
	EventPhoto
	EventEndPictures
	EventStartTrip
	EventNextStop
	EventEndTrip
)

var eventKindNames = map[EventKind]string{
	EventStart:       "start",
	EventNewSchedule: "new_schedule",
	EventText:        "text",
	EventPhoto:       "photo",
	EventEndPictures: "end_pictures",
	EventStartTrip:   "start_trip",
	EventNextStop:    "next_stop",
	EventEndTrip:     "end_trip",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Inbound chat event. Text is set for EventText and Image for EventPhoto.
type Event struct {
	Kind   EventKind
	ChatID int64
	Text   string
	Image  []byte
}

// action handles one (state, event) pair. snap is a copy of the session as
// read before dispatch; actions commit through commitSession.
type action func(s *Scheduler, ctx context.Context, ev Event, snap *domain.ScheduleSession) error

// transitions lists every event a session accepts in each state. Pairs that
// are absent are rejected with guidance and leave the session untouched.
// NewSchedule, EndTrip and Start are valid regardless of session and are
// handled before this table is consulted.
var transitions = map[domain.State]map[EventKind]action{
	domain.StateAwaitingStart: {
		EventText: (*Scheduler).recordStart,
	},
	domain.StateAwaitingEnd: {
		EventText: (*Scheduler).recordEnd,
	},
	domain.StateCollectingStops: {
		EventText:        (*Scheduler).recordStop,
		EventPhoto:       (*Scheduler).recordPhoto,
		EventEndPictures: (*Scheduler).finishStops,
	},
	domain.StateItineraryReady: {
		EventStartTrip: (*Scheduler).startTrip,
	},
	domain.StateTripInProgress: {
		EventNextStop: (*Scheduler).nextStop,
	},
}

// Accepts reports whether a session in state handles events of kind.
func Accepts(state domain.State, kind EventKind) bool {
	_, ok := transitions[state][kind]
	return ok
}

type SchedulerConfig struct {
	OCRTimeout time.Duration
}

// Scheduler is the per-chat schedule state machine.
//
// It validates each inbound event against the chat's session state, drives
// the transitions, and replies through the messenger. Events for one chat
// must be delivered in order; EndTrip may arrive at any time and wins over
// any result still in flight for the ended session.
type Scheduler struct {
	registry  ports.SessionRegistry
	optimizer *RouteOptimizer
	navigator *Navigator
	extractor ports.AddressExtractor
	messenger ports.Messenger
	cfg       SchedulerConfig
	now       func() time.Time
}

// NewScheduler wires the state machine. extractor may be nil, in which case
// photos are answered with a request to type addresses manually.
func NewScheduler(
	registry ports.SessionRegistry,
	optimizer *RouteOptimizer,
	navigator *Navigator,
	extractor ports.AddressExtractor,
	messenger ports.Messenger,
	cfg SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		registry:  registry,
		optimizer: optimizer,
		navigator: navigator,
		extractor: extractor,
		messenger: messenger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Handle processes one event. Rejections and provider failures are answered
// in the chat and are not returned; an error means a reply could not be
// delivered or the registry failed.
func (s *Scheduler) Handle(ctx context.Context, ev Event) (err error) {
	if obs.EventID(ctx) == "" {
		ctx = obs.WithEventID(ctx)
	}
	defer obs.Time(ctx, "scheduler."+ev.Kind.String())(&err)

	outcome, err := s.dispatch(ctx, ev)
	if errors.Is(err, ports.ErrStaleSession) {
		log.Printf("event_id=%s chat_id=%d discarded result for ended session kind=%s",
			obs.EventID(ctx), ev.ChatID, ev.Kind)
		outcome, err = "discarded", nil
	}
	if err != nil {
		outcome = "error"
	}
	metrics.ChatEvents.WithLabelValues(ev.Kind.String(), outcome).Inc()
	return err
}

func (s *Scheduler) dispatch(ctx context.Context, ev Event) (string, error) {
	switch ev.Kind {
	case EventStart:
		return "applied", s.reply(ctx, ev.ChatID, msgHelp)
	case EventNewSchedule:
		return "applied", s.newSchedule(ctx, ev.ChatID)
	case EventEndTrip:
		return "applied", s.endTrip(ctx, ev.ChatID)
	}

	snap, err := s.registry.Get(ctx, ev.ChatID)
	if errors.Is(err, ports.ErrNoSession) {
		return "no_session", s.reply(ctx, ev.ChatID, msgNoSession)
	}
	if err != nil {
		return "", fmt.Errorf("handle %s: load session: %w", ev.Kind, err)
	}

	if ev.Kind == EventText {
		ev.Text = strings.TrimSpace(ev.Text)
		if ev.Text == "" {
			return "rejected", s.reply(ctx, ev.ChatID, msgEmptyText)
		}
	}

	act, ok := transitions[snap.State][ev.Kind]
	if !ok {
		return "rejected", s.reply(ctx, ev.ChatID, guidanceFor(snap.State, ev.Kind))
	}

	if err := act(s, ctx, ev, snap); err != nil {
		if errors.Is(err, errRejected) {
			return "rejected", nil
		}
		return "", err
	}
	return "applied", nil
}

// errRejected marks an action that refused the event after replying.
var errRejected = errors.New("event rejected")

func (s *Scheduler) reply(ctx context.Context, chatID int64, text string) error {
	if err := s.messenger.SendText(ctx, chatID, text); err != nil {
		return fmt.Errorf("reply chat_id=%d: %w", chatID, err)
	}
	return nil
}

func (s *Scheduler) rejectWith(ctx context.Context, chatID int64, text string) error {
	if err := s.reply(ctx, chatID, text); err != nil {
		return err
	}
	return errRejected
}

// newSchedule replaces any existing session for the chat.
func (s *Scheduler) newSchedule(ctx context.Context, chatID int64) error {
	sess := domain.NewScheduleSession(chatID, s.now())
	if err := s.registry.Create(ctx, sess); err != nil {
		return fmt.Errorf("new schedule: %w", err)
	}
	log.Printf("event_id=%s chat_id=%d session_id=%s schedule created", obs.EventID(ctx), chatID, sess.ID)
	return s.reply(ctx, chatID, msgNewSchedule)
}

// endTrip destroys the session unconditionally. Results still in flight for
// it are discarded when they try to commit.
func (s *Scheduler) endTrip(ctx context.Context, chatID int64) error {
	existed, err := s.registry.Delete(ctx, chatID)
	if err != nil {
		return fmt.Errorf("end trip: %w", err)
	}
	log.Printf("event_id=%s chat_id=%d schedule ended existed=%t", obs.EventID(ctx), chatID, existed)
	return s.reply(ctx, chatID, msgTripEnded)
}

func (s *Scheduler) recordStart(ctx context.Context, ev Event, snap *domain.ScheduleSession) error {
	err := commitSession(ctx, s.registry, ev.ChatID, snap.ID, domain.StateAwaitingStart,
		func(cur *domain.ScheduleSession) (bool, error) {
			return false, cur.SetStart(ev.Text)
		})
	if err != nil {
		return err
	}
	return s.reply(ctx, ev.ChatID, startRecordedMsg(ev.Text))
}

func (s *Scheduler) recordEnd(ctx context.Context, ev Event, snap *domain.ScheduleSession) error {
	err := commitSession(ctx, s.registry, ev.ChatID, snap.ID, domain.StateAwaitingEnd,
		func(cur *domain.ScheduleSession) (bool, error) {
			return false, cur.SetEnd(ev.Text)
		})
	if err != nil {
		return err
	}
	return s.reply(ctx, ev.ChatID, endRecordedMsg(ev.Text))
}

func (s *Scheduler) recordStop(ctx context.Context, ev Event, snap *domain.ScheduleSession) error {
	err := commitSession(ctx, s.registry, ev.ChatID, snap.ID, domain.StateCollectingStops,
		func(cur *domain.ScheduleSession) (bool, error) {
			_, err := cur.AddStops(ev.Text)
			return false, err
		})
	if err != nil {
		return err
	}
	return s.reply(ctx, ev.ChatID, stopRecordedMsg(ev.Text))
}

func (s *Scheduler) recordPhoto(ctx context.Context, ev Event, snap *domain.ScheduleSession) error {
	if s.extractor == nil {
		return s.rejectWith(ctx, ev.ChatID, msgNoExtractor)
	}

	addresses := s.extractAddresses(ctx, ev.Image)
	if len(addresses) == 0 {
		return s.rejectWith(ctx, ev.ChatID, msgNothingFound)
	}

	err := commitSession(ctx, s.registry, ev.ChatID, snap.ID, domain.StateCollectingStops,
		func(cur *domain.ScheduleSession) (bool, error) {
			_, err := cur.AddStops(addresses...)
			return false, err
		})
	if err != nil {
		return err
	}
	return s.reply(ctx, ev.ChatID, photoProcessedMsg(addresses))
}

// extractAddresses runs OCR with a timeout. A failed extraction counts as
// an empty one so the chat can fall back to typing.
func (s *Scheduler) extractAddresses(ctx context.Context, image []byte) []string {
	if len(image) == 0 {
		return nil
	}

	callCtx, cancel := withTimeout(ctx, s.cfg.OCRTimeout)
	defer cancel()

	found, err := s.extractor.ExtractAddresses(callCtx, image)
	if err != nil {
		log.Printf("event_id=%s address extraction failed err=%v", obs.EventID(ctx), err)
		return nil
	}

	out := make([]string, 0, len(found))
	for _, a := range found {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (s *Scheduler) finishStops(ctx context.Context, ev Event, snap *domain.ScheduleSession) error {
	if len(snap.CollectedStops) == 0 {
		return s.rejectWith(ctx, ev.ChatID, msgNoStops)
	}

	res := s.optimizer.Optimize(ctx, snap.StartLocation, snap.EndLocation, snap.CollectedStops)

	err := commitSession(ctx, s.registry, ev.ChatID, snap.ID, domain.StateCollectingStops,
		func(cur *domain.ScheduleSession) (bool, error) {
			if len(cur.CollectedStops) != len(snap.CollectedStops) {
				return false, ports.ErrStaleSession
			}
			return false, cur.SetItinerary(res.Itinerary)
		})
	if err != nil {
		return err
	}
	return s.reply(ctx, ev.ChatID, itineraryMsg(res))
}

func (s *Scheduler) startTrip(ctx context.Context, ev Event, snap *domain.ScheduleSession) error {
	err := s.navigator.Begin(ctx, snap)
	if errors.Is(err, domain.ErrItineraryIncomplete) {
		return s.rejectWith(ctx, ev.ChatID, msgIncomplete)
	}
	return err
}

func (s *Scheduler) nextStop(ctx context.Context, ev Event, snap *domain.ScheduleSession) error {
	return s.navigator.Next(ctx, snap)
}
