package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

/*
=======================
  INPUT STRUCT
=======================
*/

// productForm carries the fields an admin sent. Nil means "not sent".
type productForm struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price"`
	OldPrice      *float64 `json:"oldPrice"`
	ClearOldPrice bool     `json:"clearOldPrice"`
	CategoryID    *string  `json:"categoryId"`
	Stock         *int     `json:"stock"`
	IsActive      *bool    `json:"isActive"`
	ImageURL      *string  `json:"imageUrl"`
}

/*
=======================
  PARSER
=======================
*/

// parseProductForm reads JSON bodies directly and multipart forms field by
// field, saving an attached image.
func parseProductForm(c *gin.Context, uploads *UploadStorage) (productForm, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var form productForm
		if err := c.ShouldBindJSON(&form); err != nil {
			return productForm{}, fmt.Errorf("invalid body: %w", err)
		}
		return form, nil
	}

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return productForm{}, err
	}

	form := productForm{}

	// ---- STRING FIELDS ----

	if value, ok := c.GetPostForm("name"); ok {
		v := strings.TrimSpace(value)
		form.Name = &v
	}
	if value, ok := c.GetPostForm("description"); ok {
		v := strings.TrimSpace(value)
		form.Description = &v
	}
	if value, ok := c.GetPostForm("categoryId"); ok {
		v := strings.TrimSpace(value)
		form.CategoryID = &v
	}

	// ---- NUMBER FIELDS ----

	if value, ok := c.GetPostForm("price"); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return productForm{}, fmt.Errorf("price is invalid")
		}
		form.Price = &parsed
	}
	if value, ok := c.GetPostForm("oldPrice"); ok {
		value = strings.TrimSpace(value)
		if value == "" {
			form.ClearOldPrice = true
		} else {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return productForm{}, fmt.Errorf("oldPrice is invalid")
			}
			form.OldPrice = &parsed
		}
	}
	if value, ok := c.GetPostForm("stock"); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return productForm{}, fmt.Errorf("stock is invalid")
		}
		form.Stock = &parsed
	}

	// ---- BOOL FIELDS ----

	if values := c.PostFormArray("isActive"); len(values) > 0 {
		parsed, err := parseBoolValue(values[len(values)-1])
		if err != nil {
			return productForm{}, fmt.Errorf("isActive is invalid")
		}
		form.IsActive = &parsed
	}

	// ---- IMAGE FILE ----

	file, err := c.FormFile("image")
	switch {
	case err == nil:
		imagePath, err := uploads.SaveImage(file)
		if err != nil {
			return productForm{}, err
		}
		form.ImageURL = &imagePath
	case !errors.Is(err, http.ErrMissingFile):
		return productForm{}, err
	}

	return form, nil
}

/*
=======================
  HELPERS
=======================
*/

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}
