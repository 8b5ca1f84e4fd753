/*
Copyright 2022 The Koordinator Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package catalogue

import (
	"fmt"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	yaml "gopkg.in/yaml.v2"

	"github.com/pietruzzo/barberque-allocation-sub003/pkg/respath"
)

// recipeDoc is the on-disk shape of a per-application recipe file (§6).
type recipeDoc struct {
	Application string          `yaml:"application" validate:"required"`
	WorkingModes []recipeWM     `yaml:"working_modes" validate:"required,min=1,dive"`
}

type recipeWM struct {
	ID       string          `yaml:"id" validate:"required"`
	Value    float32         `yaml:"value" validate:"gte=0,lte=1"`
	Requests []recipeRequest `yaml:"requests" validate:"required,min=1,dive"`
}

type recipeRequest struct {
	Path   string `yaml:"path" validate:"required"`
	Amount uint64 `yaml:"amount" validate:"required,gt=0"`
}

var (
	recipeValidate *validator.Validate
	recipeTrans    ut.Translator
)

func init() {
	recipeValidate = validator.New()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	recipeTrans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(recipeValidate, recipeTrans)
}

// LoadRecipe decodes and validates a recipe file's bytes, returning one
// Catalogue populated in declaration order. Duplicate working-mode ids and
// non-positive amounts are rejected, per §6.
func LoadRecipe(data []byte) (appID string, cat *Catalogue, err error) {
	var doc recipeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("catalogue: malformed recipe: %w", err)
	}
	if err := recipeValidate.Struct(doc); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return "", nil, fmt.Errorf("catalogue: invalid recipe: %s", verrs[0].Translate(recipeTrans))
		}
		return "", nil, fmt.Errorf("catalogue: invalid recipe: %w", err)
	}

	cat = New()
	for _, rwm := range doc.WorkingModes {
		wm := &WorkingMode{
			ID:               rwm.ID,
			OwnerApplication: doc.Application,
			StaticValue:      rwm.Value,
		}
		for _, rr := range rwm.Requests {
			path, err := respath.Parse(rr.Path)
			if err != nil {
				return "", nil, fmt.Errorf("catalogue: recipe %s/%s: %w", doc.Application, rwm.ID, err)
			}
			wm.Requests = append(wm.Requests, Request{Path: path, Amount: rr.Amount})
		}
		if err := cat.Add(wm); err != nil {
			return "", nil, fmt.Errorf("catalogue: recipe %s: %w", doc.Application, err)
		}
	}
	return doc.Application, cat, nil
}
