package nnet

import (
	"math/rand"
	"os"
	"path"
	"testing"
)

func TestConfigSetString(t *testing.T) {
	c := Config{Margin: 0.2}
	c, err := c.SetString("Margin", "0.5")
	if err != nil {
		t.Fatal(err)
	}
	if c.Margin != 0.5 {
		t.Errorf("Margin = %v, want 0.5", c.Margin)
	}
	c, err = c.SetString("Backbone", "simple_cnn")
	if err != nil {
		t.Fatal(err)
	}
	if c.Backbone != "simple_cnn" {
		t.Errorf("Backbone = %v", c.Backbone)
	}
	if _, err = c.SetString("Shuffle", "yes"); err == nil {
		t.Error("expected error setting bool via SetString")
	}
	c, err = c.SetBool("Shuffle", true)
	if err != nil || !c.Shuffle {
		t.Errorf("SetBool failed: %v", err)
	}
}

func TestConfigSaveLoad(t *testing.T) {
	saved := DataDir
	DataDir = t.TempDir()
	defer func() { DataDir = saved }()
	c := Config{DataSet: "blobs", Backbone: "mlp", Model: "linear_embed", Margin: 1, LearningRate: 0.01}
	if err := c.Save("blobs.net"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path.Join(DataDir, "blobs.net")); err != nil {
		t.Fatal(err)
	}
	c2, err := LoadConfig("blobs.net")
	if err != nil {
		t.Fatal(err)
	}
	if c2 != c {
		t.Errorf("config mismatch:\n%v\n%v", c2, c)
	}
}

func TestRegistry(t *testing.T) {
	conf := Config{EmbedSize: 16}
	net, err := Backbone("mlp", conf, []int{3, 8, 8})
	if err != nil {
		t.Fatal(err)
	}
	if shape := net.OutShape(); shape[0] != 128 {
		t.Errorf("backbone output shape %v", shape)
	}
	head, err := Model("linear_embed", conf, net.OutShape())
	if err != nil {
		t.Fatal(err)
	}
	if shape := head.OutShape(); shape[0] != 16 {
		t.Errorf("model output shape %v", shape)
	}
	if _, err = Backbone("resnet152", conf, []int{3, 8, 8}); err == nil {
		t.Error("expected error for unknown backbone")
	}
	if _, err = Model("bogus", conf, []int{128}); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestRegistryCNN(t *testing.T) {
	conf := Config{}
	net, err := Backbone("simple_cnn", conf, []int{3, 16, 16})
	if err != nil {
		t.Fatal(err)
	}
	if shape := net.OutShape(); shape[0] != 16*4*4 {
		t.Errorf("backbone output shape %v", shape)
	}
	net.InitWeights(true, rand.New(rand.NewSource(1)))
	out := net.Fprop(randInput(2, 3*16*16, 1))
	if _, c := out.Dims(); c != 16*4*4 {
		t.Errorf("output cols %d", c)
	}
}
