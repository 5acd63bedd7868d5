package ocr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"telecalc/internal/logger"
)

const (
	// MaxFileSizeBytes is the maximum file size for synchronous processing (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the maximum number of pages for synchronous processing
	MaxPagesSync = 5
)

// Bills are printed in Arabic, English or both.
var languageHints = []string{"ar", "en"}

// VisionService implements Service using Google Cloud Vision API.
type VisionService struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewVisionService creates a client. Nil credentials use application default
// credentials.
func NewVisionService(ctx context.Context, credentialsJSON []byte) (*VisionService, error) {
	const op = "NewVisionService"

	var opts []option.ClientOption
	if credentialsJSON != nil {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return &VisionService{
		client: client,
		log:    logger.WithComponent("ocr"),
	}, nil
}

// Close closes the underlying Vision client.
func (v *VisionService) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// ReadText runs document text detection on a PDF, TIFF or image.
func (v *VisionService) ReadText(ctx context.Context, r io.Reader) (*Result, error) {
	const op = "ReadText"
	start := time.Now()

	content, err := io.ReadAll(io.LimitReader(r, MaxFileSizeBytes+1))
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read document")
	}
	if len(content) > MaxFileSizeBytes {
		return nil, WrapOCRError(op, ErrFileTooLarge, fmt.Sprintf("file size: %d bytes", len(content)))
	}

	features := []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}}
	imageContext := &visionpb.ImageContext{LanguageHints: languageHints}

	var pages []*visionpb.AnnotateImageResponse
	switch mimeType := detectMIMEType(content); {
	case mimeType == "application/pdf" || mimeType == "image/tiff":
		resp, err := v.client.BatchAnnotateFiles(ctx, &visionpb.BatchAnnotateFilesRequest{
			Requests: []*visionpb.AnnotateFileRequest{{
				InputConfig:  &visionpb.InputConfig{Content: content, MimeType: mimeType},
				Features:     features,
				ImageContext: imageContext,
			}},
		})
		if err != nil {
			return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
		}
		if len(resp.GetResponses()) == 0 {
			return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
		}
		fileResp := resp.GetResponses()[0]
		if fileResp.GetError() != nil {
			return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", fileResp.GetError().GetMessage()))
		}
		pages = fileResp.GetResponses()
	case strings.HasPrefix(mimeType, "image/"):
		resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
			Requests: []*visionpb.AnnotateImageRequest{{
				Image:        &visionpb.Image{Content: content},
				Features:     features,
				ImageContext: imageContext,
			}},
		})
		if err != nil {
			return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
		}
		pages = resp.GetResponses()
	default:
		return nil, WrapOCRError(op, ErrUnsupportedFormat, mimeType)
	}

	result, err := collectText(pages)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}
	result.ProcessingDuration = time.Since(start)

	v.log.Debug().
		Int("pages", result.PageCount).
		Int("chars", len(result.Text)).
		Float32("confidence", result.Confidence).
		Strs("languages", result.LanguageCodes).
		Dur("duration", result.ProcessingDuration).
		Msg("OCR completed")

	return result, nil
}

func detectMIMEType(content []byte) string {
	switch {
	case len(content) >= 4 && string(content[:4]) == "%PDF":
		return "application/pdf"
	case len(content) >= 4 && (string(content[:4]) == "II*\x00" || string(content[:4]) == "MM\x00*"):
		return "image/tiff"
	default:
		return http.DetectContentType(content)
	}
}

// collectText joins the page texts and averages page confidence.
func collectText(pages []*visionpb.AnnotateImageResponse) (*Result, error) {
	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}
	if len(pages) > MaxPagesSync {
		return nil, fmt.Errorf("%w: document has %d pages", ErrTooManyPages, len(pages))
	}

	var text strings.Builder
	var confSum float32
	var confCount int
	languages := make(map[string]int)

	for i, page := range pages {
		if page.GetError() != nil {
			return nil, fmt.Errorf("%w: page %d: %s", ErrOCRFailed, i+1, page.GetError().GetMessage())
		}
		annotation := page.GetFullTextAnnotation()
		if annotation == nil {
			continue
		}

		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(strings.TrimSpace(annotation.GetText()))

		for _, p := range annotation.GetPages() {
			if p.GetConfidence() > 0 {
				confSum += p.GetConfidence()
				confCount++
			}
			for _, lang := range p.GetProperty().GetDetectedLanguages() {
				if lang.GetLanguageCode() != "" {
					languages[lang.GetLanguageCode()]++
				}
			}
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyDocument
	}

	codes := make([]string, 0, len(languages))
	for code := range languages {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if languages[codes[i]] != languages[codes[j]] {
			return languages[codes[i]] > languages[codes[j]]
		}
		return codes[i] < codes[j]
	})

	result := &Result{
		Text:          text.String(),
		PageCount:     len(pages),
		LanguageCodes: codes,
	}
	if confCount > 0 {
		result.Confidence = confSum / float32(confCount)
	}
	return result, nil
}
