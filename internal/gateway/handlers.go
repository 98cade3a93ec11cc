package gateway

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"dochelper/internal/errinfo"
)

var validate = validator.New()

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errinfo.ValidationFailed(errinfo.PhaseSession, "Invalid request body.", err.Error())
	}
	if err := validate.Struct(out); err != nil {
		fields := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fmt.Sprintf("failed on '%s' tag", fe.Tag())
			}
		} else {
			fields["body"] = err.Error()
		}
		return ValidationError{Errors: fields}
	}
	return nil
}

type startSessionRequest struct {
	Mode    string `json:"mode" validate:"required,oneof=edit analyze fix"`
	Channel string `json:"channel"`
}

func (s *Server) handleStartSession(c *fiber.Ctx) error {
	var req startSessionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status := s.eng.StartSession(c.Params("user"), req.Mode, req.Channel)
	return c.Status(fiber.StatusCreated).JSON(status)
}

func (s *Server) handleSessionStatus(c *fiber.Ctx) error {
	status, err := s.eng.SessionStatus(c.Params("user"))
	if err != nil {
		return err
	}
	return c.JSON(status)
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	s.eng.Cancel(c.Params("user"))
	return c.JSON(fiber.Map{"cancelled": true})
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return errinfo.ValidationFailed(errinfo.PhaseUpload,
			"Please attach a document file.", "missing multipart field 'file'")
	}
	f, err := header.Open()
	if err != nil {
		return errinfo.FileReadFailed(errinfo.PhaseUpload, err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return errinfo.FileReadFailed(errinfo.PhaseUpload, err.Error())
	}
	status, aerr := s.eng.AttachDocument(c.Params("user"), header.Filename, data)
	if aerr != nil {
		return aerr
	}
	return c.Status(fiber.StatusCreated).JSON(status)
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	path, name, err := s.eng.Document(c.Params("user"))
	if err != nil {
		return err
	}
	return c.Download(path, name)
}

type findRequest struct {
	Search string `json:"search" validate:"required"`
}

func (s *Server) handleFind(c *fiber.Ctx) error {
	var req findRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.eng.FindText(c.Params("user"), req.Search)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

type replaceRequest struct {
	Search  string `json:"search" validate:"required"`
	Replace string `json:"replace"`
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	var req replaceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.eng.PreviewReplace(c.Params("user"), req.Search, req.Replace)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) handleReplace(c *fiber.Ctx) error {
	var req replaceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.eng.ReplaceText(c.Context(), c.Params("user"), req.Search, req.Replace)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

type analyzeRequest struct {
	Kind string `json:"kind" validate:"required,oneof=grammar full_review summary generate_fixes"`
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := s.eng.Analyze(c.Context(), c.Params("user"), req.Kind)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) handlePendingFixes(c *fiber.Ctx) error {
	fixes, err := s.eng.PendingFixes(c.Params("user"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"fixes": fixes, "count": len(fixes)})
}

// applyFixesRequest selects pending fixes by position; a missing or null
// indexes field means all of them.
type applyFixesRequest struct {
	Indexes []int `json:"indexes"`
}

func (s *Server) handleApplyFixes(c *fiber.Ctx) error {
	var req applyFixesRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	res, err := s.eng.ApplyFixes(c.Context(), c.Params("user"), req.Indexes)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) handleUsage(c *fiber.Ctx) error {
	return c.JSON(s.eng.Usage(c.Params("user")))
}
