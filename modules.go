package vitessr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/buke/quickjs-go"
)

// ManifestModuleKey is the source key the injector uses in the module map it emits.
const ManifestModuleKey = "__manifest__"

// The module map is a JS object literal, not JSON (`default:` is an unquoted key),
// so it is evaluated rather than decoded.
const moduleMapWrapper = `(function() {
	var modules = (%s);
	var out = [];
	for (var key in modules) {
		var mod = modules[key];
		out.push(mod && typeof mod === 'object' && 'default' in mod ? mod["default"] : mod);
	}
	return JSON.stringify(out);
})()`

// ParseManifestModules evaluates a module map such as
// { "__manifest__": { default: {...} } } and merges every default export in key order.
func ParseManifestModules(ctx context.Context, source string) (Manifest, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty module map", ErrInvalidManifest)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rt := quickjs.NewRuntime()
	defer rt.Close()
	rt.SetMaxStackSize(1024 * 1024)
	rt.SetInterruptHandler(makeInterruptHandler(ctx))

	jsCtx := rt.NewContext()
	defer jsCtx.Close()

	result := jsCtx.Eval(fmt.Sprintf(moduleMapWrapper, source))
	if result.IsException() {
		result.Free()
		return nil, fmt.Errorf("%w: eval module map: %s", ErrInvalidManifest, jsCtx.Exception())
	}
	defer result.Free()

	if !result.IsString() {
		return nil, fmt.Errorf("%w: module map did not serialize", ErrInvalidManifest)
	}

	var defaults []Manifest
	if err := json.Unmarshal([]byte(result.String()), &defaults); err != nil {
		return nil, fmt.Errorf("%w: decode module map: %w", ErrInvalidManifest, err)
	}

	merged := mergeManifests(defaults...)
	if merged == nil {
		return nil, fmt.Errorf("%w: module map has no manifests", ErrInvalidManifest)
	}
	return merged, nil
}

func makeInterruptHandler(ctx context.Context) quickjs.InterruptHandler {
	return func() int {
		select {
		case <-ctx.Done():
			return 1
		default:
			return 0
		}
	}
}
