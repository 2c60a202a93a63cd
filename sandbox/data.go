package sandbox

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindhaven/carekit/careapi"
	"github.com/mindhaven/carekit/session"
)

// firstSlotHour and lastSlotHour bound the hourly slots generated per day.
const (
	firstSlotHour = 10
	lastSlotHour  = 17
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

func seedCentres() []careapi.Centre {
	return []careapi.Centre{
		{ID: "ctr-blr", Name: "MindHaven Indiranagar", City: "Bengaluru", Address: "100 Feet Road, Indiranagar", Phone: "+918040001000"},
		{ID: "ctr-mum", Name: "MindHaven Bandra", City: "Mumbai", Address: "Hill Road, Bandra West", Phone: "+912240002000"},
	}
}

func seedClinicians() []careapi.Clinician {
	return []careapi.Clinician{
		{
			ID: "cl-001", Name: "Dr. Asha Rao", Specialty: "psychiatry",
			Qualifications: []string{"MBBS", "MD Psychiatry"}, Languages: []string{"en", "kn"},
			CentreIDs: []string{"ctr-blr"}, Modes: []string{careapi.ModeInPerson, careapi.ModeVideo}, FeePaise: 150000,
		},
		{
			ID: "cl-002", Name: "Kabir Mehta", Specialty: "psychology",
			Qualifications: []string{"M.Phil Clinical Psychology"}, Languages: []string{"en", "hi"},
			CentreIDs: []string{"ctr-mum"}, Modes: []string{careapi.ModeInPerson}, FeePaise: 120000,
		},
		{
			ID: "cl-003", Name: "Meera Iyer", Specialty: "counselling",
			Languages: []string{"en", "ta"},
			Modes:     []string{careapi.ModeVideo}, FeePaise: 90000,
		},
	}
}

type order struct {
	careapi.PaymentOrder
	userID    string
	paymentID string
}

type cachedResponse struct {
	status int
	body   any
}

// state is the sandbox's in-memory backend.
type state struct {
	mu           sync.Mutex
	centres      []careapi.Centre
	clinicians   []careapi.Clinician
	users        map[string]*session.Profile // by phone
	tokens       map[string]string           // token -> user ID
	pendingOTP   map[string]bool             // phones with an outstanding OTP
	appointments map[string]*careapi.Appointment
	orders       map[string]*order
	idempotent   map[string]cachedResponse
	now          func() time.Time
}

func newState(now func() time.Time) *state {
	return &state{
		centres:      seedCentres(),
		clinicians:   seedClinicians(),
		users:        map[string]*session.Profile{},
		tokens:       map[string]string{},
		pendingOTP:   map[string]bool{},
		appointments: map[string]*careapi.Appointment{},
		orders:       map[string]*order{},
		idempotent:   map[string]cachedResponse{},
		now:          now,
	}
}

func (s *state) clinician(id string) (careapi.Clinician, bool) {
	i := slices.IndexFunc(s.clinicians, func(c careapi.Clinician) bool { return c.ID == id })
	if i < 0 {
		return careapi.Clinician{}, false
	}
	return s.clinicians[i], true
}

func (s *state) centre(id string) (careapi.Centre, bool) {
	i := slices.IndexFunc(s.centres, func(c careapi.Centre) bool { return c.ID == id })
	if i < 0 {
		return careapi.Centre{}, false
	}
	return s.centres[i], true
}

// slotID encodes clinician, day and hour so a slot can be resolved without storage.
func slotID(clinicianID string, day time.Time, hour int) string {
	return fmt.Sprintf("%s_%s_%02d", clinicianID, day.Format("20060102"), hour)
}

func parseSlotID(id string) (clinicianID string, day time.Time, hour int, ok bool) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return "", time.Time{}, 0, false
	}
	day, err := time.ParseInLocation("20060102", parts[1], ist)
	if err != nil {
		return "", time.Time{}, 0, false
	}
	hour, err = strconv.Atoi(parts[2])
	if err != nil || hour < firstSlotHour || hour >= lastSlotHour {
		return "", time.Time{}, 0, false
	}
	return parts[0], day, hour, true
}

// slotFor builds the slot at hour. Even hours are in person at one of the
// clinician's centres when the clinician sees patients in person, everything
// else is video.
func (s *state) slotFor(c careapi.Clinician, day time.Time, hour int) careapi.Slot {
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, ist)
	slot := careapi.Slot{
		ID:          slotID(c.ID, day, hour),
		ClinicianID: c.ID,
		Start:       start,
		End:         start.Add(50 * time.Minute),
		Mode:        careapi.ModeVideo,
	}
	inPerson := slices.Contains(c.Modes, careapi.ModeInPerson) && len(c.CentreIDs) > 0
	video := slices.Contains(c.Modes, careapi.ModeVideo)
	if inPerson && (hour%2 == 0 || !video) {
		slot.Mode = careapi.ModeInPerson
		slot.CentreID = c.CentreIDs[(hour/2)%len(c.CentreIDs)]
	}
	slot.Available = start.After(s.now()) && !s.slotTaken(slot.ID)
	return slot
}

func (s *state) slots(c careapi.Clinician, day time.Time) []careapi.Slot {
	out := make([]careapi.Slot, 0, lastSlotHour-firstSlotHour)
	for h := firstSlotHour; h < lastSlotHour; h++ {
		out = append(out, s.slotFor(c, day, h))
	}
	return out
}

func (s *state) slotTaken(id string) bool {
	for _, a := range s.appointments {
		if a.SlotID == id && a.Status != careapi.StatusCancelled {
			return true
		}
	}
	return false
}

func (s *state) signIn(phone string) (string, *session.Profile) {
	user, ok := s.users[phone]
	if !ok {
		user = &session.Profile{ID: "usr-" + uuid.NewString()[:8], Name: "Guest " + phone[len(phone)-4:], Phone: phone}
		s.users[phone] = user
	}
	token := "tok-" + uuid.NewString()
	s.tokens[token] = user.ID
	return token, user
}
