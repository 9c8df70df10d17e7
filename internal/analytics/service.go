package analytics

import (
	"context"

	"go.uber.org/zap"

	"github.com/Skufu/excipredict/internal/prediction"
)

const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

type Summary struct {
	Counters    Counters `json:"counters"`
	Source      string   `json:"source"`
	DatasetSize int      `json:"datasetSize"`
}

// Service combines the local recorder with the optional remote counters.
type Service struct {
	local       Recorder
	remote      *RemoteClient
	datasetSize int
	logger      *zap.Logger
}

// NewService accepts a nil remote when no analytics URL is configured.
func NewService(local Recorder, remote *RemoteClient, datasetSize int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{local: local, remote: remote, datasetSize: datasetSize, logger: logger}
}

// Summary prefers the remote counters and falls back to local ones when the remote is
// absent or failing.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	if s.remote != nil {
		c, err := s.remote.Fetch(ctx)
		if err == nil {
			return Summary{Counters: c, Source: SourceRemote, DatasetSize: s.datasetSize}, nil
		}
		s.logger.Warn("remote analytics unavailable, using local counters", zap.Error(err))
	}
	c, err := s.local.Counters(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Counters: c, Source: SourceLocal, DatasetSize: s.datasetSize}, nil
}

func (s *Service) RegisterVisitor(ctx context.Context, userID string) {
	if err := s.local.RegisterVisitor(ctx, userID); err != nil {
		s.logger.Warn("register visitor failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// PredictionHook forwards successful predictions to the recorder, tagged with whatever
// user is signed in when the result lands.
func (s *Service) PredictionHook(currentUser func() string) prediction.SuccessHook {
	return func(ctx context.Context, _ prediction.Input, out prediction.Outcome) {
		userID := currentUser()
		if err := s.local.RecordPrediction(ctx, userID, out); err != nil {
			s.logger.Warn("record prediction failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}
