package httpadapter

import (
    "time"

    "github.com/golang-sql/civil"
    openapi_types "github.com/oapi-codegen/runtime/types"

    "tripcrew/internal/domain"
)

// Wire shapes. Dates travel as YYYY-MM-DD via openapi_types.Date.

type datesRequest struct {
    Dates []openapi_types.Date `json:"dates"`
}

type dayResult struct {
    Date   openapi_types.Date `json:"date"`
    OK     bool               `json:"ok"`
    Status string             `json:"status"`
    Reason string             `json:"reason,omitempty"`
}

type markResponse struct {
    Contractor string      `json:"contractor"`
    Role       string      `json:"role"`
    Results    []dayResult `json:"results"`
}

type dayStatus struct {
    Date   openapi_types.Date `json:"date"`
    Status string             `json:"status"`
}

type calendarResponse struct {
    Contractor string      `json:"contractor"`
    Role       string      `json:"role"`
    Days       []dayStatus `json:"days"`
}

type assignmentRequest struct {
    Role       string               `json:"role"`
    TripID     string               `json:"tripId"`
    Dates      []openapi_types.Date `json:"dates"`
    Candidates []string             `json:"candidates,omitempty"`
}

type assignmentResponse struct {
    TripID      string               `json:"tripId"`
    Role        string               `json:"role"`
    WinnerEmail string               `json:"winnerEmail"`
    Score       float64              `json:"score"`
    LockedDates []openapi_types.Date `json:"lockedDates"`
}

type releasedDay struct {
    Contractor string             `json:"contractor"`
    Role       string             `json:"role"`
    Date       openapi_types.Date `json:"date"`
}

type releaseResponse struct {
    TripID   string        `json:"tripId"`
    Released []releasedDay `json:"released"`
}

type errorResponse struct {
    Error   string `json:"error"`
    Message string `json:"message"`
}

func toCivil(in []openapi_types.Date) []civil.Date {
    out := make([]civil.Date, len(in))
    for i, d := range in {
        out[i] = civil.DateOf(d.Time)
    }
    return out
}

func fromCivil(d civil.Date) openapi_types.Date {
    return openapi_types.Date{Time: d.In(time.UTC)}
}

func fromCivilAll(in []civil.Date) []openapi_types.Date {
    out := make([]openapi_types.Date, len(in))
    for i, d := range in {
        out[i] = fromCivil(d)
    }
    return out
}

func toDayResults(in []domain.DayResult) []dayResult {
    out := make([]dayResult, len(in))
    for i, r := range in {
        out[i] = dayResult{Date: fromCivil(r.Date), OK: r.OK, Status: string(r.Status), Reason: r.Reason}
    }
    return out
}
