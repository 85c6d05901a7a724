// Package schedule evaluates weekly opening-hours schedules. Schedules
// arrive as admin-entered JSON keyed by lowercase weekday name, each
// value either the literal "closed" or a list of {"from","to"} clock
// ranges ("HH:MM"). The data is optional and of uneven quality, so
// parsing deliberately fails open: anything malformed evaluates as
// always open rather than failing the caller's request.
package schedule

import (
    "encoding/json"
    "fmt"
    "log"
    "strconv"
    "strings"
    "time"
)

// maxScanDays bounds the forward scan in NextOpening so a schedule
// that is closed every day cannot loop forever.
const maxScanDays = 14

// TimeRange is one open interval within a day, in minutes from
// midnight. A range with From > To spans midnight (22:00-02:00).
type TimeRange struct {
    From int // minute of day, inclusive
    To   int // minute of day, exclusive
}

// Contains reports whether the given minute of day falls inside the
// range, honouring midnight-spanning ranges.
func (r TimeRange) Contains(minute int) bool {
    if r.From > r.To {
        return minute >= r.From || minute < r.To
    }
    return minute >= r.From && minute < r.To
}

// DaySchedule is the resolved schedule for one weekday. A closed day
// has Closed set and no ranges; a day absent from the input JSON is
// treated as closed as well.
type DaySchedule struct {
    Closed bool
    Ranges []TimeRange
}

// WeekSchedule maps time.Weekday to its resolved day schedule. A nil
// WeekSchedule means "no restriction": every instant is open. This is
// the fail-open value returned for malformed input.
type WeekSchedule map[time.Weekday]DaySchedule

var weekdayNames = map[string]time.Weekday{
    "sunday":    time.Sunday,
    "monday":    time.Monday,
    "tuesday":   time.Tuesday,
    "wednesday": time.Wednesday,
    "thursday":  time.Thursday,
    "friday":    time.Friday,
    "saturday":  time.Saturday,
}

// rawRange mirrors the JSON shape of one clock range.
type rawRange struct {
    From string `json:"from"`
    To   string `json:"to"`
}

// ParseWeekSchedule decodes the JSON weekly schedule. On any shape or
// value error it logs the problem and returns nil (always open); a
// data-quality issue in optional configuration must never hard-fail a
// booking. An empty string is also treated as no restriction.
func ParseWeekSchedule(raw string) WeekSchedule {
    if strings.TrimSpace(raw) == "" {
        return nil
    }
    var days map[string]json.RawMessage
    if err := json.Unmarshal([]byte(raw), &days); err != nil {
        log.Printf("schedule: malformed weekly schedule, treating as always open: %v", err)
        return nil
    }
    ws := make(WeekSchedule, len(days))
    for name, val := range days {
        wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
        if !ok {
            log.Printf("schedule: unknown weekday %q, treating schedule as always open", name)
            return nil
        }
        // a day is either the string "closed" or a list of ranges
        var marker string
        if err := json.Unmarshal(val, &marker); err == nil {
            if strings.EqualFold(strings.TrimSpace(marker), "closed") {
                ws[wd] = DaySchedule{Closed: true}
                continue
            }
            log.Printf("schedule: unexpected day value %q, treating schedule as always open", marker)
            return nil
        }
        var rawRanges []rawRange
        if err := json.Unmarshal(val, &rawRanges); err != nil {
            log.Printf("schedule: bad ranges for %s, treating schedule as always open: %v", name, err)
            return nil
        }
        ranges := make([]TimeRange, 0, len(rawRanges))
        for _, rr := range rawRanges {
            from, err1 := parseClock(rr.From)
            to, err2 := parseClock(rr.To)
            if err1 != nil || err2 != nil {
                log.Printf("schedule: bad clock value in %s (%q-%q), treating schedule as always open", name, rr.From, rr.To)
                return nil
            }
            ranges = append(ranges, TimeRange{From: from, To: to})
        }
        ws[wd] = DaySchedule{Ranges: ranges}
    }
    return ws
}

// parseClock converts "HH:MM" into minutes from midnight.
func parseClock(s string) (int, error) {
    parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
    if len(parts) != 2 {
        return 0, fmt.Errorf("clock value %q is not HH:MM", s)
    }
    h, err := strconv.Atoi(parts[0])
    if err != nil {
        return 0, err
    }
    m, err := strconv.Atoi(parts[1])
    if err != nil {
        return 0, err
    }
    if h < 0 || h > 23 || m < 0 || m > 59 {
        return 0, fmt.Errorf("clock value %q out of range", s)
    }
    return h*60 + m, nil
}

// IsOpenAt reports whether the schedule is open at the given instant,
// evaluated in the supplied location. The weekday and minute of day
// are taken from timezone-aware civil time, never from the server's
// local clock, so the answer is identical wherever the process runs.
// A nil schedule is always open.
func (ws WeekSchedule) IsOpenAt(at time.Time, loc *time.Location) bool {
    if ws == nil {
        return true
    }
    if loc == nil {
        loc = time.UTC
    }
    local := at.In(loc)
    day, ok := ws[local.Weekday()]
    if !ok || day.Closed {
        return false
    }
    minute := local.Hour()*60 + local.Minute()
    for _, r := range day.Ranges {
        if r.Contains(minute) {
            return true
        }
    }
    return false
}

// IsOpenDuring reports whether the schedule is open for the whole
// half-open window [start, end). Checking the endpoints alone is not
// enough: a day with split shifts (09:00-12:00, 13:00-17:00) is open
// at 11:00 and at 13:30 yet closed in between, so the window is walked
// stretch by stretch. A nil schedule is always open.
func (ws WeekSchedule) IsOpenDuring(start, end time.Time, loc *time.Location) bool {
    if ws == nil {
        return true
    }
    if loc == nil {
        loc = time.UTC
    }
    cursor := start
    for cursor.Before(end) {
        next, open := ws.openStretchEnd(cursor, loc)
        if !open {
            return false
        }
        cursor = next
    }
    return true
}

// openStretchEnd returns the exclusive end of the contiguous open
// stretch containing `at`, capped at the next midnight because the
// following day is governed by its own ranges. open is false when the
// schedule is closed at `at`.
func (ws WeekSchedule) openStretchEnd(at time.Time, loc *time.Location) (end time.Time, open bool) {
    local := at.In(loc)
    day, ok := ws[local.Weekday()]
    if !ok || day.Closed {
        return time.Time{}, false
    }
    minute := local.Hour()*60 + local.Minute()
    dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
    for _, r := range day.Ranges {
        if !r.Contains(minute) {
            continue
        }
        var stretch time.Time
        switch {
        case r.From > r.To && minute >= r.From:
            // midnight-spanning range; the day flips at 00:00
            stretch = dayStart.AddDate(0, 0, 1)
        default:
            stretch = dayStart.Add(time.Duration(r.To) * time.Minute)
        }
        if !open || stretch.After(end) {
            end, open = stretch, true
        }
    }
    return end, open
}

// NextOpening returns the next instant at or after `at` when the
// schedule opens, scanning forward day by day for at most maxScanDays.
// For a nil schedule the input instant is returned unchanged (always
// open). The boolean is false when no opening exists within the scan
// window.
func (ws WeekSchedule) NextOpening(at time.Time, loc *time.Location) (time.Time, bool) {
    if ws == nil {
        return at, true
    }
    if loc == nil {
        loc = time.UTC
    }
    local := at.In(loc)
    for i := 0; i < maxScanDays; i++ {
        dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, i)
        day, ok := ws[dayStart.Weekday()]
        if !ok || day.Closed || len(day.Ranges) == 0 {
            continue
        }
        earliest := -1
        for _, r := range day.Ranges {
            if earliest == -1 || r.From < earliest {
                earliest = r.From
            }
        }
        opening := dayStart.Add(time.Duration(earliest) * time.Minute)
        if i == 0 && opening.Before(local) {
            // today's opening already passed; a later range today may
            // still lie ahead
            later := -1
            minute := local.Hour()*60 + local.Minute()
            for _, r := range day.Ranges {
                if r.From >= minute && (later == -1 || r.From < later) {
                    later = r.From
                }
            }
            if later == -1 {
                continue
            }
            opening = dayStart.Add(time.Duration(later) * time.Minute)
        }
        return opening, true
    }
    return time.Time{}, false
}
