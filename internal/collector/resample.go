package collector

import "QuantCore/internal/model"

// Resample converts a daily Series into ISO-week bars. Fundamentals are taken
// from the last bar of each week. A weekly Series is returned unchanged.
func Resample(s *model.Series, cal model.Calendar) (*model.Series, error) {
	if cal == s.Calendar || cal == "" {
		return s, nil
	}
	if cal != model.CalendarWeekly || s.Calendar != model.CalendarDaily {
		return nil, model.Errorf(model.KindInvalidParameter, s.Symbol, "cannot resample %s to %s", s.Calendar, cal)
	}

	out := &model.Series{Symbol: s.Symbol, Calendar: model.CalendarWeekly}
	if len(s.Points) == 0 {
		return out, nil
	}

	week := s.Points[0]
	for _, d := range s.Points[1:] {
		wy, ww := week.Date.ISOWeek()
		dy, dw := d.Date.ISOWeek()
		if wy != dy || ww != dw {
			out.Points = append(out.Points, week)
			week = d
			continue
		}
		if d.High > week.High {
			week.High = d.High
		}
		if d.Low < week.Low {
			week.Low = d.Low
		}
		week.Close = d.Close
		week.Volume += d.Volume
		week.Fundamentals = d.Fundamentals
		week.Date = d.Date
	}
	out.Points = append(out.Points, week)
	return out, nil
}
