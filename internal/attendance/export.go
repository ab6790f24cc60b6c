package attendance

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var exportHeader = []string{
	"user_id", "work_date", "check_in_time", "check_out_time",
	"work_location", "total_hours", "check_in_address", "check_out_address",
}

// Export は期間内のセッションを CSV で w に書き出す。
// encoding=sjis は Excel（CP932）向け。
func (s *Service) Export(ctx context.Context, w io.Writer, in ExportQuery) error {
	if in.From == "" || in.To == "" {
		return ErrInvalid("from and to are required")
	}
	switch in.Encoding {
	case "", EncodingUTF8, EncodingShiftJIS:
	default:
		return ErrInvalid("encoding must be utf8 or sjis")
	}
	q := ListQuery{From: &in.From, To: &in.To, UserID: in.UserID, Sort: SortWorkDateAsc, Limit: MaxPageLimit}
	if err := normalizeListQuery(&q); err != nil {
		return err
	}

	if in.Encoding != EncodingShiftJIS {
		return s.writeCSV(ctx, w, q)
	}
	// CP932 に無い文字（絵文字など）は SUB (0x1A) に置き換えて出力を止めない
	tw := transform.NewWriter(w, encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder()))
	if err := s.writeCSV(ctx, tw, q); err != nil {
		_ = tw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		return ErrInternal("failed to encode export")
	}
	return nil
}

func (s *Service) writeCSV(ctx context.Context, out io.Writer, q ListQuery) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(exportHeader); err != nil {
		return ErrInternal("failed to write export")
	}

	// MaxPageLimit 件ずつページングして全件書き出す
	for {
		rows, total, err := s.store.List(ctx, q)
		if err != nil {
			return s.upstream("export sessions", err)
		}
		for i := range rows {
			if err := cw.Write(csvRecord(rows[i])); err != nil {
				return ErrInternal("failed to write export")
			}
		}
		q.Offset += len(rows)
		if len(rows) == 0 || int64(q.Offset) >= total {
			break
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return ErrInternal("failed to write export")
	}
	return nil
}

func csvRecord(s Session) []string {
	return []string{
		s.UserID,
		s.WorkDate,
		formatTime(s.CheckInTime),
		formatTime(s.CheckOutTime),
		string(s.WorkLocation),
		formatHours(s.TotalHours),
		readingAddress(s.CheckInLocation),
		readingAddress(s.CheckOutLocation),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatHours(h *float64) string {
	if h == nil {
		return ""
	}
	return strconv.FormatFloat(*h, 'f', 2, 64)
}

func readingAddress(r *LocationReading) string {
	if r == nil || r.Address == nil {
		return ""
	}
	return *r.Address
}
