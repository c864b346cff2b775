package detectionService

import (
	"VSLBackend/internal/api/detection"
	detectionRepository "VSLBackend/internal/api/detection/repository"
	"VSLBackend/internal/entity"
	"VSLBackend/pkg/imaging"
	"VSLBackend/pkg/metrics"
	"VSLBackend/pkg/redis"
	"VSLBackend/pkg/s3"
	"VSLBackend/pkg/utils"
	"VSLBackend/pkg/video"
	websocketPkg "VSLBackend/pkg/websocket"
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

type IDetectionService interface {
	NewStreamSession() *StreamSession
	ProcessStreamFrame(ctx context.Context, session *StreamSession, req detection.StreamRequest) (*detection.StreamResponse, error)
	ProcessUpload(ctx context.Context, filename string, src io.Reader) (*detection.UploadResponse, error)
	GenerateSentence(ctx context.Context, source detection.GlossSource) (string, error)
	LatestArtifact(ctx context.Context) (entity.Artifact, error)
	StreamArtifact(ctx context.Context, artifact entity.Artifact, w io.Writer) error
	History(ctx context.Context, limit int) ([]entity.DetectionRun, error)
}

// Paraphraser turns a space separated gloss string into a sentence.
type Paraphraser interface {
	Paraphrase(ctx context.Context, glosses string) (string, error)
}

type Config struct {
	UploadThreshold     float64
	StreamThreshold     float64
	UploadInputSize     int
	StreamInputSize     int
	UploadMaxDetections int
	StreamMaxDetections int
	MaxBatchFrames      int
	MaxImagePixels      int
	TempDir             string
	ChunkSize           int
	SentenceCacheTTL    time.Duration
	ImageExtensions     []string
	VideoExtensions     []string
}

func DefaultConfig() Config {
	return Config{
		UploadThreshold:     0.75,
		StreamThreshold:     0.7,
		UploadInputSize:     640,
		StreamInputSize:     320,
		UploadMaxDetections: 0,
		StreamMaxDetections: 1,
		MaxBatchFrames:      1000,
		MaxImagePixels:      imaging.DefaultMaxPixels,
		TempDir:             "temp_files",
		ChunkSize:           1024 * 1024,
		SentenceCacheTTL:    24 * time.Hour,
		ImageExtensions:     []string{".jpg", ".jpeg", ".png"},
		VideoExtensions:     []string{".mp4", ".mov"},
	}
}

type detectionService struct {
	log         *logrus.Logger
	cfg         Config
	detector    websocketPkg.IDetector
	paraphraser Paraphraser
	cache       redis.IRedis
	renderer    *imaging.Renderer
	video       video.IVideo
	artifacts   detectionRepository.ArtifactStore
	repo        detectionRepository.Repository
	s3Client    s3.ItfS3
	metrics     *metrics.Metrics
	utils       utils.IUtils
}

// NewDetectionService wires the pipeline. paraphraser, cache, repo, s3Client
// and m may be nil.
func NewDetectionService(
	log *logrus.Logger,
	cfg Config,
	detector websocketPkg.IDetector,
	paraphraser Paraphraser,
	cache redis.IRedis,
	renderer *imaging.Renderer,
	videoIO video.IVideo,
	artifacts detectionRepository.ArtifactStore,
	repo detectionRepository.Repository,
	s3Client s3.ItfS3,
	m *metrics.Metrics,
	utils utils.IUtils,
) IDetectionService {
	if cfg.MaxBatchFrames <= 0 {
		cfg.MaxBatchFrames = DefaultConfig().MaxBatchFrames
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}

	return &detectionService{
		log:         log,
		cfg:         cfg,
		detector:    detector,
		paraphraser: paraphraser,
		cache:       cache,
		renderer:    renderer,
		video:       videoIO,
		artifacts:   artifacts,
		repo:        repo,
		s3Client:    s3Client,
		metrics:     m,
		utils:       utils,
	}
}
