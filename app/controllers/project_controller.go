package controllers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/projects"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/usercontext"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description" validate:"max=10000"`
	Visibility  string `json:"visibility"`
}

type saveProjectRequest struct {
	Resources     json.RawMessage `json:"resources"`
	Connections   json.RawMessage `json:"connections"`
	Positions     json.RawMessage `json:"positions"`
	TerraformCode string          `json:"terraform_code"`
}

// ProjectController exposes project CRUD and the version log
type ProjectController struct {
	app *appctx.App
}

func NewProjectController(app *appctx.App) *ProjectController {
	return &ProjectController{app: app}
}

func (pc *ProjectController) HandleList(c *fiber.Ctx) error {
	list, err := pc.app.Projects.List(c.UserContext(), usercontext.GetUser(c))
	if err != nil {
		log.Errorf("[Projects] List projects error: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to fetch projects")
	}
	out := make([]map[string]interface{}, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToDict())
	}
	return c.JSON(fiber.Map{"success": true, "projects": out})
}

func (pc *ProjectController) HandleCreate(c *fiber.Ctx) error {
	var req createProjectRequest
	if !bindJSON(c, &req) {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid project data")
	}

	project, err := pc.app.Projects.Create(c.UserContext(), usercontext.GetUser(c), projects.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if err != nil {
		return projectError(c, err, "Failed to create project")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "project": project.ToDict()})
}

func (pc *ProjectController) HandleGet(c *fiber.Ctx) error {
	project, err := pc.app.Projects.Get(c.UserContext(), usercontext.GetUser(c), c.Params("id"))
	if err != nil {
		return projectError(c, err, "Failed to fetch project")
	}
	return c.JSON(fiber.Map{"success": true, "project": project.ToDict()})
}

func (pc *ProjectController) HandleDelete(c *fiber.Ctx) error {
	if err := pc.app.Projects.Delete(c.UserContext(), usercontext.GetUser(c), c.Params("id")); err != nil {
		return projectError(c, err, "Failed to delete project")
	}
	return c.JSON(fiber.Map{"success": true, "message": "Project deleted successfully"})
}

// HandleSave appends the posted snapshot as a new version.
func (pc *ProjectController) HandleSave(c *fiber.Ctx) error {
	var req saveProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid project data")
	}

	version, err := pc.app.Projects.Save(c.UserContext(), usercontext.GetUser(c), c.Params("id"), projects.SaveInput{
		Resources:     req.Resources,
		Connections:   req.Connections,
		Positions:     req.Positions,
		TerraformCode: req.TerraformCode,
	})
	if err != nil {
		return projectError(c, err, "Failed to save project")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Project saved successfully",
		"version": version.ToDict(),
	})
}

// HandleLoad returns the newest version, or the empty state for a fresh project.
func (pc *ProjectController) HandleLoad(c *fiber.Ctx) error {
	version, err := pc.app.Projects.LoadLatest(c.UserContext(), usercontext.GetUser(c), c.Params("id"))
	if err != nil {
		return projectError(c, err, "Failed to load project")
	}
	return c.JSON(fiber.Map{"success": true, "version": version.ToDict()})
}

func (pc *ProjectController) HandleListVersions(c *fiber.Ctx) error {
	metas, err := pc.app.Projects.ListVersions(c.UserContext(), usercontext.GetUser(c), c.Params("id"))
	if err != nil {
		return projectError(c, err, "Failed to fetch versions")
	}
	out := make([]map[string]interface{}, 0, len(metas))
	for _, m := range metas {
		out = append(out, m.ToDict())
	}
	return c.JSON(fiber.Map{"success": true, "versions": out})
}

func (pc *ProjectController) HandleGetVersion(c *fiber.Ctx) error {
	number, err := strconv.Atoi(c.Params("n"))
	if err != nil || number < 1 {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid version number")
	}
	version, err := pc.app.Projects.LoadVersion(c.UserContext(), usercontext.GetUser(c), c.Params("id"), number)
	if err != nil {
		return projectError(c, err, "Failed to load version")
	}
	return c.JSON(fiber.Map{"success": true, "version": version.ToDict()})
}

func projectError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, projects.ErrProjectNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Project not found")
	case errors.Is(err, projects.ErrForbidden):
		return errorJSON(c, fiber.StatusForbidden, "Unauthorized")
	case errors.Is(err, projects.ErrVersionNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Version not found")
	case errors.Is(err, projects.ErrVersionConflict):
		return errorJSON(c, fiber.StatusConflict, "Version conflict, please retry")
	case errors.Is(err, projects.ErrNameRequired):
		return errorJSON(c, fiber.StatusBadRequest, "Project name is required")
	case errors.Is(err, projects.ErrInvalidVisibility):
		return errorJSON(c, fiber.StatusBadRequest, "Invalid visibility")
	case errors.Is(err, projects.ErrInvalidProject), errors.Is(err, projects.ErrInvalidSnapshot):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid project data", "message": err.Error()})
	case errors.Is(err, projects.ErrProjectLimit):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "Project limit reached",
			"message": "Upgrade to Pro for unlimited projects",
		})
	}
	log.Errorf("[Projects] %s: %v", fallback, err)
	return errorJSON(c, fiber.StatusInternalServerError, fallback)
}
