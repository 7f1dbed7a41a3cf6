package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

type reportService struct {
	sessions SessionService
	logger   *slog.Logger
}

func NewReportService(sessions SessionService, logger *slog.Logger) ReportService {
	return &reportService{sessions: sessions, logger: logger}
}

// OutcomeWorkbook renders a completed session's result as an xlsx download.
func (s *reportService) OutcomeWorkbook(ctx context.Context, sessionID, userID string) ([]byte, error) {
	outcome, err := s.sessions.Result(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Result"
	f.SetSheetName("Sheet1", sheet)

	rows := [][]any{
		{"Session", sessionID},
		{"Score", fmt.Sprintf("%d / %d", outcome.Score, outcome.MaxScore)},
		{"Answered", outcome.TotalAnswered},
		{"Percentage", outcome.Percentage},
		{"Passed", outcome.Passed},
		{"Level", string(outcome.Level)},
		{"Time spent (s)", outcome.TimeSpent},
	}
	if outcome.Fallback {
		rows = append(rows, []any{"Note", "locally computed after a grading failure; not a verified grade"})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("failed to build report layout: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write report row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("outcome report rendered", "session_id", sessionID, "user_id", userID)
	return buf.Bytes(), nil
}
