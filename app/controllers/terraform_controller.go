package controllers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
)

type terraformCodeRequest struct {
	Code *string `json:"code"`
}

type terraformResourcesRequest struct {
	Resources json.RawMessage `json:"resources"`
}

// TerraformController holds placeholders for the HCL tooling.
type TerraformController struct{}

func NewTerraformController() *TerraformController {
	return &TerraformController{}
}

func (tc *TerraformController) HandleParse(c *fiber.Ctx) error {
	var req terraformCodeRequest
	if err := c.BodyParser(&req); err != nil || req.Code == nil {
		return errorJSON(c, fiber.StatusBadRequest, "Terraform code is required")
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Terraform parsing coming soon",
		"resources": []interface{}{},
	})
}

func (tc *TerraformController) HandleGenerate(c *fiber.Ctx) error {
	var req terraformResourcesRequest
	if err := c.BodyParser(&req); err != nil || len(req.Resources) == 0 || string(req.Resources) == "null" {
		return errorJSON(c, fiber.StatusBadRequest, "Resources are required")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Code generation coming soon",
		"code":    "# Generated Terraform code will appear here",
	})
}

func (tc *TerraformController) HandleValidate(c *fiber.Ctx) error {
	var req terraformCodeRequest
	if err := c.BodyParser(&req); err != nil || req.Code == nil {
		return errorJSON(c, fiber.StatusBadRequest, "Terraform code is required")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"valid":   true,
		"errors":  []interface{}{},
	})
}
