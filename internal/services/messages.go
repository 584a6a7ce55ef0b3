package services

import (
	"delivery-schedule-bot/internal/domain"
	"fmt"
	"strings"
)

const (
	msgHelp = "Welcome to the Delivery Bot!\n" +
		"Use /newschedule to start a new delivery schedule.\n\n" +
		"Commands:\n" +
		"/newschedule - start a new schedule\n" +
		"/endpictures - finish adding stops and optimize the route\n" +
		"/starttrip - begin the trip\n" +
		"/nextstop - go to the next delivery location\n" +
		"/endtrip - end the trip and clear the schedule"

	msgNewSchedule    = "New schedule initiated.\nPlease provide the start delivery location (e.g., 'Toh Guan Road')."
	msgNoSession      = "No active schedule. Start a new one with /newschedule."
	msgEmptyText      = "Empty message ignored. Please type an address."
	msgTripEnded      = "Trip ended and context wiped."
	msgNoStops        = "No pictures or additional addresses received. Please send pictures containing delivery addresses or type them in manually."
	msgNoExtractor    = "Reading addresses from pictures is not available. Please type the addresses manually."
	msgNothingFound   = "No address could be extracted from the picture. You may type an address manually."
	msgIncomplete     = "Itinerary is empty or incomplete. Start again with /newschedule."
	msgTripStarted    = "Trip started. Sending the first delivery location:"
	msgNextLocation   = "Proceeding to the next delivery location:"
	msgTripComplete   = "Trip complete. Well done!"
	msgUnexpectedText = "Text received, but not expected at this stage."
)

// Guidance sent when an event does not fit the session's state. Each names
// the action the chat is expected to take next.
var stateGuidance = map[domain.State]string{
	domain.StateAwaitingStart:   "Please provide the start delivery location first (e.g., 'Toh Guan Road').",
	domain.StateAwaitingEnd:     "Please provide the end delivery location first (e.g., 'Yishun Ave 1').",
	domain.StateCollectingStops: "Still collecting stops. Send pictures or type addresses, then use /endpictures.",
	domain.StateItineraryReady:  "Your itinerary is ready. Use /starttrip to begin your delivery, or /endtrip to discard it.",
	domain.StateTripInProgress:  "Trip in progress. Use /nextstop for the next delivery location, or /endtrip to finish.",
}

func guidanceFor(state domain.State, kind EventKind) string {
	g, ok := stateGuidance[state]
	if !ok {
		g = msgNoSession
	}
	if kind == EventText {
		return msgUnexpectedText + "\n" + g
	}
	return g
}

func startRecordedMsg(start string) string {
	return fmt.Sprintf(
		"Start location recorded as: '%s'.\nNow, please provide the end delivery location (e.g., 'Yishun Ave 1').",
		start,
	)
}

func endRecordedMsg(end string) string {
	return fmt.Sprintf(
		"End location recorded as: '%s'.\nNow, please send your delivery pictures. "+
			"You can also type additional addresses if needed. When finished, use /endpictures.",
		end,
	)
}

func stopRecordedMsg(stop string) string {
	return "Additional address recorded: " + stop
}

func photoProcessedMsg(addresses []string) string {
	return "Picture processed. Addresses extracted: " + strings.Join(addresses, ", ") +
		"\nIf you need to add more addresses manually, please type them now."
}

func itineraryMsg(res domain.OptimizeResult) string {
	var b strings.Builder
	if res.Optimized {
		b.WriteString("Itinerary optimized and ready.")
	} else {
		b.WriteString("Route optimization was unavailable, so the stops keep the order they were submitted in.")
	}
	b.WriteString("\n")
	last := len(res.Itinerary) - 1
	for i, stop := range res.Itinerary {
		switch i {
		case 0:
			fmt.Fprintf(&b, "\nStart: %s", stop)
		case last:
			fmt.Fprintf(&b, "\nEnd: %s", stop)
		default:
			fmt.Fprintf(&b, "\n%d. %s", i, stop)
		}
	}
	b.WriteString("\n\nUse /starttrip to begin your delivery.")
	return b.String()
}

func addressMsg(address string) string {
	return "Address: " + address
}

func notGeocodedMsg(address string) string {
	return "Could not geocode address: " + address
}
