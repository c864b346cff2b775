package detectionHandler

import (
	"VSLBackend/internal/api/detection"
	"VSLBackend/internal/entity"
	contextPkg "VSLBackend/pkg/context"
	"VSLBackend/pkg/handlerUtil"
	"VSLBackend/pkg/log"
	"bufio"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

const (
	uploadTimeout  = 10 * time.Minute
	requestTimeout = 30 * time.Second
)

func (h *DetectionHandler) Upload(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), uploadTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, err := ctx.FormFile("file")
	if err != nil {
		return errHandler.Handle(ctx, requestID, detection.ErrNoFile, ctx.Path(), "read_form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing detection upload")

	src, err := file.Open()
	if err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", detection.ErrSaveFile, err), ctx.Path(), "open_file")
	}
	defer src.Close()

	result, err := h.detectionService.ProcessUpload(c, file.Filename, src)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_upload")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"type":       result.Type,
			"sentence":   result.Sentence,
		}).Info("Detection upload processed")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

// Result serves the newest artifact. Videos are streamed in chunks, images
// are sent as a file.
func (h *DetectionHandler) Result(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	artifact, err := h.detectionService.LatestArtifact(c)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "latest_artifact")
	}

	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%s", artifact.Name))

	if artifact.Type != entity.MediaTypeVideo {
		ctx.Set(fiber.HeaderContentType, artifact.ContentType)
		return ctx.SendFile(artifact.Path)
	}

	ctx.Set(fiber.HeaderContentType, artifact.ContentType)
	streamCtx := contextPkg.WithRequestID(context.Background(), requestID)
	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := h.detectionService.StreamArtifact(streamCtx, artifact, w); err != nil {
			h.log.WithFields(log.Fields{
				"request_id": requestID,
				"artifact":   artifact.Name,
				"error":      err.Error(),
			}).Warn("Artifact stream interrupted")
		}
		if err := w.Flush(); err != nil {
			h.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Debug("Client went away during artifact stream")
		}
	})

	return nil
}

func (h *DetectionHandler) GenerateSentence(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req detection.SentenceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", detection.ErrInvalidJSON, err), ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	source, err := detection.ParseGlossSource(req.Detections)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_detections")
	}

	sentence, err := h.detectionService.GenerateSentence(c, source)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "generate_sentence")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.SentenceResponse{
			Sentence: sentence,
		})
	}
}

func (h *DetectionHandler) History(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var query detection.HistoryQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	runs, err := h.detectionService.History(c, query.Limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_history")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		if runs == nil {
			runs = []entity.DetectionRun{}
		}
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.HistoryResponse{
			Runs: runs,
		})
	}
}
