package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-hr-console/server/timetrackerrepo"
	"github.com/rs/zerolog/log"
)

type logBody struct {
	CheckInTime  time.Time  `json:"checkInTime"`
	CheckOutTime *time.Time `json:"checkOutTime"`
	AutoClosed   bool       `json:"autoClosed,omitempty"`
}

func toLogBody(rec *timetrackerrepo.Record) *logBody {
	if rec == nil {
		return nil
	}
	return &logBody{CheckInTime: rec.CheckInTime, CheckOutTime: rec.CheckOutTime, AutoClosed: rec.AutoClosed}
}

// CheckInHandler opens a record for today. An open record left over from an earlier day is
// closed at the end of its day first and the reply carries "autoClosed": true.
func (s *Server) CheckInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(ContextKeyUserID).(string)
		now := s.nowTime()

		records, err := s.repos.TimeTrackers.ListByUser(userID)
		if err != nil {
			log.Err(err).Str("user_id", userID).Msg("failed to list time records")
			writeMessage(w, http.StatusInternalServerError, "Could not check in")
			return
		}

		autoClosed := false
		for _, rec := range records {
			if !rec.Open() {
				continue
			}
			if sameDay(rec.CheckInTime, now) {
				writeMessage(w, http.StatusConflict, "Already checked in")
				return
			}
			closedAt := endOfDay(rec.CheckInTime)
			if closedAt.After(now) {
				closedAt = now
			}
			rec.CheckOutTime = &closedAt
			rec.AutoClosed = true
			if err := s.repos.TimeTrackers.Upsert(rec); err != nil {
				log.Err(err).Str("record_id", rec.ID).Msg("failed to auto-close record")
				writeMessage(w, http.StatusInternalServerError, "Could not check in")
				return
			}
			autoClosed = true
			log.Info().Str("user_id", userID).Str("record_id", rec.ID).Msg("stale session auto-closed")
		}

		rec := &timetrackerrepo.Record{ID: uuid.New().String(), UserID: userID, CheckInTime: now}
		if err := s.repos.TimeTrackers.Upsert(rec); err != nil {
			log.Err(err).Str("user_id", userID).Msg("failed to store check-in")
			writeMessage(w, http.StatusInternalServerError, "Could not check in")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"message":    "Checked in",
			"log":        toLogBody(rec),
			"autoClosed": autoClosed,
		})
	}
}

func (s *Server) CheckOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(ContextKeyUserID).(string)

		open, err := s.openRecord(userID)
		if err != nil {
			log.Err(err).Str("user_id", userID).Msg("failed to list time records")
			writeMessage(w, http.StatusInternalServerError, "Could not check out")
			return
		}
		if open == nil {
			writeMessage(w, http.StatusConflict, "Not checked in")
			return
		}

		now := s.nowTime()
		open.CheckOutTime = &now
		if err := s.repos.TimeTrackers.Upsert(open); err != nil {
			log.Err(err).Str("record_id", open.ID).Msg("failed to store check-out")
			writeMessage(w, http.StatusInternalServerError, "Could not check out")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Checked out", "log": toLogBody(open)})
	}
}

// DailyLogHandler returns the latest record started today, or {"log": null}.
func (s *Server) DailyLogHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID := r.PathValue("userId")
		claims, _ := claimsFrom(r.Context())

		if claims == nil || (claims.Subject != targetID && !s.canViewAttendance(claims.Subject, targetID)) {
			writeMessage(w, http.StatusForbidden, "Not allowed to view this time tracker")
			return
		}

		records, err := s.repos.TimeTrackers.ListByUser(targetID)
		if err != nil {
			log.Err(err).Str("user_id", targetID).Msg("failed to list time records")
			writeMessage(w, http.StatusInternalServerError, "Could not load the daily log")
			return
		}

		now := s.nowTime()
		var today *timetrackerrepo.Record
		for _, rec := range records {
			if sameDay(rec.CheckInTime, now) {
				today = rec
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"log": toLogBody(today)})
	}
}

func (s *Server) canViewAttendance(viewerID, targetID string) bool {
	viewer, err := s.repos.Users.GetByID(viewerID)
	if err != nil {
		return false
	}
	return viewer.CanViewAttendance(targetID)
}

func (s *Server) openRecord(userID string) (*timetrackerrepo.Record, error) {
	records, err := s.repos.TimeTrackers.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Open() {
			return records[i], nil
		}
	}
	return nil, nil
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
