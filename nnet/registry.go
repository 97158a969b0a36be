package nnet

import "fmt"

// Factory builds the layer stack for a named architecture.
type Factory func(conf Config) []Layer

var (
	backbones = map[string]Factory{}
	models    = map[string]Factory{}
)

// RegisterBackbone adds a named backbone feature extractor.
func RegisterBackbone(name string, fn Factory) {
	backbones[name] = fn
}

// RegisterModel adds a named projection head.
func RegisterModel(name string, fn Factory) {
	models[name] = fn
}

// Backbone constructs the named feature extractor for the given input shape.
func Backbone(name string, conf Config, inShape []int) (*Network, error) {
	fn, ok := backbones[name]
	if !ok {
		return nil, fmt.Errorf("unknown backbone: %s", name)
	}
	return New(fn(conf), inShape), nil
}

// Model constructs the named projection head on top of the backbone output.
func Model(name string, conf Config, inShape []int) (*Network, error) {
	fn, ok := models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return New(fn(conf), inShape), nil
}

func init() {
	RegisterBackbone("simple_cnn", func(conf Config) []Layer {
		return []Layer{
			(&conv{Conv: Conv{Nfeats: 8, Size: 3, Stride: 1, Pad: 1}}),
			newActivation(Activation{Atype: "relu"}),
			(&maxPool{MaxPool: MaxPool{Size: 2}}),
			(&conv{Conv: Conv{Nfeats: 16, Size: 3, Stride: 1, Pad: 1}}),
			newActivation(Activation{Atype: "relu"}),
			(&maxPool{MaxPool: MaxPool{Size: 2}}),
			&flatten{},
		}
	})
	RegisterBackbone("mlp", func(conf Config) []Layer {
		return []Layer{
			&flatten{},
			(&linear{Linear: Linear{Nout: 128}}),
			newActivation(Activation{Atype: "relu"}),
		}
	})
	RegisterModel("linear_embed", func(conf Config) []Layer {
		return []Layer{
			(&linear{Linear: Linear{Nout: conf.embedSize()}}),
		}
	})
	RegisterModel("mlp_embed", func(conf Config) []Layer {
		return []Layer{
			(&linear{Linear: Linear{Nout: 64}}),
			newActivation(Activation{Atype: "relu"}),
			(&linear{Linear: Linear{Nout: conf.embedSize()}}),
		}
	})
}
