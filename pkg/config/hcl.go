// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/walteh/fillswap/pkg/model"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files.
// Environment variables are available to expressions as env.NAME.
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".hcl")
}

// HCL schema; every field is optional so that omitted values keep their defaults
type hclConfig struct {
	Scope *string `hcl:"scope,optional"`
	Match *struct {
		Mode             *string `hcl:"mode,optional"`
		IgnoreSeparators *bool   `hcl:"ignore_separators,optional"`
		PrefixMatch      *bool   `hcl:"prefix_match,optional"`
	} `hcl:"match,block"`
	Sources *struct {
		Extensions     *[]string `hcl:"extensions,optional"`
		Ignore         *[]string `hcl:"ignore,optional"`
		Recursive      *bool     `hcl:"recursive,optional"`
		MaxConcurrency *int      `hcl:"max_concurrency,optional"`
		MaxFileSize    *int64    `hcl:"max_file_size,optional"`
	} `hcl:"sources,block"`
	Replace *struct {
		ImageCacheSize *int `hcl:"image_cache_size,optional"`
	} `hcl:"replace,block"`
	Server *struct {
		Addr           *string `hcl:"addr,optional"`
		MaxSnapshotAge *string `hcl:"max_snapshot_age,optional"`
	} `hcl:"server,block"`
	Log *struct {
		Level *string `hcl:"level,optional"`
	} `hcl:"log,block"`
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// Create evaluation context
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(),
		},
	}

	// Decode HCL
	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := Default()
	set(&cfg.Scope, (*model.Scope)(hclCfg.Scope))
	if m := hclCfg.Match; m != nil {
		set(&cfg.Match.Mode, m.Mode)
		set(&cfg.Match.IgnoreSeparators, m.IgnoreSeparators)
		set(&cfg.Match.PrefixMatch, m.PrefixMatch)
	}
	if s := hclCfg.Sources; s != nil {
		set(&cfg.Sources.Extensions, s.Extensions)
		set(&cfg.Sources.Ignore, s.Ignore)
		set(&cfg.Sources.Recursive, s.Recursive)
		set(&cfg.Sources.MaxConcurrency, s.MaxConcurrency)
		set(&cfg.Sources.MaxFileSize, s.MaxFileSize)
	}
	if r := hclCfg.Replace; r != nil {
		set(&cfg.Replace.ImageCacheSize, r.ImageCacheSize)
	}
	if s := hclCfg.Server; s != nil {
		set(&cfg.Server.Addr, s.Addr)
		set(&cfg.Server.MaxSnapshotAge, s.MaxSnapshotAge)
	}
	if l := hclCfg.Log; l != nil {
		set(&cfg.Log.Level, l.Level)
	}

	return cfg, nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// envObject exposes the process environment as a cty object
func envObject() cty.Value {
	vals := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || !hclIdentifier(k) {
			continue
		}
		vals[k] = cty.StringVal(v)
	}
	if len(vals) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vals)
}

func hclIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}
