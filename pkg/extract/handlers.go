package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	gcr "github.com/google/go-containerregistry/pkg/v1"
	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/opst/pht-central/pkg/objectstore"
	"github.com/sirupsen/logrus"
)

// ResultRef is the payload of commands for results.
type ResultRef struct {
	TrainId string `json:"train_id"`

	// id of the Result. Optional.
	Id string `json:"id,omitempty"`
}

func (r ResultRef) validate() error {
	if r.TrainId == "" {
		return xe.New(xe.Validation, "train_id is required")
	}
	if strings.ContainsAny(r.TrainId, `/\`) || r.TrainId == "." || r.TrainId == ".." {
		return xe.Errorf(xe.Validation, "train_id %q is not acceptable", r.TrainId)
	}
	return nil
}

func decodeRef(envelope mq.Envelope) (ResultRef, error) {
	ref, err := mq.Decode[ResultRef](envelope)
	if err != nil {
		return ResultRef{}, err
	}
	if err := ref.validate(); err != nil {
		return ResultRef{}, err
	}
	return ref, nil
}

// StatusReported is the payload of the resultService.statusReported event.
type StatusReported struct {
	TrainId string              `json:"train_id"`
	Id      string              `json:"id,omitempty"`
	Status  domain.ResultStatus `json:"status"`
}

// BucketName is the bucket of the object storage keeping results of the train.
func BucketName(trainId string) string {
	return "trains-" + strings.ToLower(trainId) + "-results"
}

type ResultServiceConfig struct {
	// paths in result images to be extracted, in order.
	Paths []string

	// directory where extracted archives are written, as "<train_id>.tar".
	OutputDir string
}

// ResultService handles commands of the result service.
type ResultService struct {
	conf     ResultServiceConfig
	pipeline *Pipeline
	pub      mq.Publisher
	logger   logrus.FieldLogger
}

func NewResultService(
	conf ResultServiceConfig, pipeline *Pipeline, pub mq.Publisher, logger logrus.FieldLogger,
) *ResultService {
	return &ResultService{
		conf:     conf,
		pipeline: pipeline,
		pub:      pub,
		logger:   logger.WithField("component", "result-service"),
	}
}

// Register handlers to the dispatcher.
func (s *ResultService) Register(d *mq.Dispatcher) error {
	for typ, h := range map[mq.Type]mq.Handler{
		mq.ResultServiceDownload: s.HandleDownload,
		mq.ResultServiceExtract:  s.HandleExtract,
		mq.ResultServiceStatus:   s.HandleStatus,
	} {
		if err := d.Register(typ, h); err != nil {
			return err
		}
	}
	return nil
}

// ArchivePath is where the archive of the train is extracted.
func (s *ResultService) ArchivePath(trainId string) string {
	return filepath.Join(s.conf.OutputDir, trainId+".tar")
}

func (s *ResultService) report(ctx context.Context, ref ResultRef, status domain.ResultStatus) error {
	return mq.Emit(
		ctx, s.pub, mq.ResultServiceStatusReported,
		StatusReported{TrainId: ref.TrainId, Id: ref.Id, Status: status},
	)
}

// HandleDownload retrieves the result image of the train.
func (s *ResultService) HandleDownload(ctx context.Context, envelope mq.Envelope) error {
	ref, err := decodeRef(envelope)
	if err != nil {
		return err
	}
	if _, err := s.pipeline.Retrieve(ctx, ref.TrainId); err != nil {
		return err
	}
	return s.report(ctx, ref, domain.ResultDownloaded)
}

// HandleExtract extracts the result image of the train into its archive.
//
// The image is retrieved when it has not been.
func (s *ResultService) HandleExtract(ctx context.Context, envelope mq.Envelope) error {
	ref, err := decodeRef(envelope)
	if err != nil {
		return err
	}

	img, err := s.image(ctx, ref.TrainId)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.conf.OutputDir, 0o755); err != nil {
		return xe.Wrap(err)
	}
	if err := s.pipeline.Extract(ctx, img, s.conf.Paths, s.ArchivePath(ref.TrainId)); err != nil {
		return err
	}
	return s.report(ctx, ref, domain.ResultExtracted)
}

func (s *ResultService) image(ctx context.Context, trainId string) (gcr.Image, error) {
	img, err := s.pipeline.Retrieved(trainId)
	if err == nil {
		return img, nil
	}
	if !errors.Is(err, xe.ErrNotFound) {
		return nil, err
	}
	return s.pipeline.Retrieve(ctx, trainId)
}

// HandleStatus reports how far the result of the train has been processed.
func (s *ResultService) HandleStatus(ctx context.Context, envelope mq.Envelope) error {
	ref, err := decodeRef(envelope)
	if err != nil {
		return err
	}

	status := domain.ResultUnknown
	if _, err := os.Stat(s.ArchivePath(ref.TrainId)); err == nil {
		status = domain.ResultExtracted
	} else if _, err := s.pipeline.Retrieved(ref.TrainId); err == nil {
		status = domain.ResultDownloaded
	}
	s.logger.WithField("train", ref.TrainId).Debugf("status: %s", status)
	return s.report(ctx, ref, status)
}

type TrainManagerConfig struct {
	// paths in result images to be extracted, in order.
	Paths []string

	// directory for temporary archives.
	WorkDir string
}

// TrainManager handles extraction commands of the train manager.
//
// It extracts result images and uploads their archives to the object storage.
type TrainManager struct {
	conf     TrainManagerConfig
	pipeline *Pipeline
	uploader objectstore.Uploader
	pub      mq.Publisher
	logger   logrus.FieldLogger
}

func NewTrainManager(
	conf TrainManagerConfig,
	pipeline *Pipeline,
	uploader objectstore.Uploader,
	pub mq.Publisher,
	logger logrus.FieldLogger,
) *TrainManager {
	return &TrainManager{
		conf:     conf,
		pipeline: pipeline,
		uploader: uploader,
		pub:      pub,
		logger:   logger.WithField("component", "train-manager"),
	}
}

func (m *TrainManager) Register(d *mq.Dispatcher) error {
	return d.Register(mq.TrainManagerExtract, m.HandleExtract)
}

// HandleExtract retrieves, extracts and uploads the result of the train,
// then emits trainManager.extracted with the data and metadata of the command.
func (m *TrainManager) HandleExtract(ctx context.Context, envelope mq.Envelope) error {
	ref, err := decodeRef(envelope)
	if err != nil {
		return err
	}

	img, err := m.pipeline.Retrieve(ctx, ref.TrainId)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.conf.WorkDir, 0o755); err != nil {
		return xe.Wrap(err)
	}
	tmp, err := os.CreateTemp(m.conf.WorkDir, ref.TrainId+"-*.tar")
	if err != nil {
		return xe.Wrap(err)
	}
	dest := tmp.Name()
	tmp.Close()

	if err := m.pipeline.Extract(ctx, img, m.conf.Paths, dest); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(dest); err != nil {
			m.logger.WithError(err).Warn("failed to remove temporary archive")
		}
	}()

	if err := m.uploader.Upload(ctx, BucketName(ref.TrainId), "results.tar", dest); err != nil {
		return err
	}

	return mq.Emit(
		ctx, m.pub, mq.TrainManagerExtracted, envelope.Data,
		mq.WithMetadata(envelope.Metadata),
	)
}
