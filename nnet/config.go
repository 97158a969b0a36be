package nnet

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"reflect"
	"strconv"
	"strings"
)

// DataDir is the location of config and dataset files.
var DataDir = dataDir()

func dataDir() string {
	if dir := os.Getenv("TRIPLETNET_DATA"); dir != "" {
		return dir
	}
	return "data"
}

// Training configuration settings
type Config struct {
	DataSet       string
	Backbone      string
	Model         string
	EmbedSize     int
	Margin        float64
	LearningRate  float64
	WeightDecay   float64
	Optimizer     string
	TrainBatch    int
	TestBatch     int
	MaxEpoch      int
	Shuffle       bool
	NormalWeights bool
	RandSeed      int64
	DebugLevel    int
	BaseDir       string
	WebAddr       string
	AuthUser      string
	AuthPass      string
}

func (c Config) embedSize() int {
	if c.EmbedSize > 0 {
		return c.EmbedSize
	}
	return 32
}

// Load config from json file under DataDir
func LoadConfig(name string) (c Config, err error) {
	filePath := path.Join(DataDir, name)
	var f *os.File
	if f, err = os.Open(filePath); err != nil {
		return
	}
	defer f.Close()
	fmt.Println("loading config from", name)
	dec := json.NewDecoder(f)
	err = dec.Decode(&c)
	return
}

// Save config to JSON file under DataDir
func (c Config) Save(name string) error {
	filePath := path.Join(DataDir, "."+name)
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	fmt.Println("saving config to", name)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(c); err != nil {
		f.Close()
		return err
	}
	f.Close()
	return os.Rename(filePath, path.Join(DataDir, name))
}

func (c Config) Fields() []string {
	st := reflect.TypeOf(c)
	fld := make([]string, st.NumField())
	for i := range fld {
		fld[i] = st.Field(i).Name
	}
	return fld
}

func (c Config) Get(key string) interface{} {
	s := reflect.ValueOf(c)
	return s.FieldByName(key).Interface()
}

func (c Config) String() string {
	fields := c.Fields()
	str := []string{"== Config =="}
	for _, key := range fields {
		str = append(str, fmt.Sprintf("%-14s: %v", key, c.Get(key)))
	}
	return strings.Join(str, "\n")
}

func (c Config) SetString(key, val string) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	f := s.FieldByName(key)
	var err error
	switch f.Type().Kind() {
	case reflect.Int, reflect.Int64:
		var x int64
		if x, err = strconv.ParseInt(val, 10, 64); err == nil {
			f.SetInt(x)
		}
	case reflect.Float64:
		var x float64
		if x, err = strconv.ParseFloat(val, 64); err == nil {
			f.SetFloat(x)
		}
	case reflect.String:
		f.SetString(val)
	default:
		return c, fmt.Errorf("invalid type for SetString: %v", f.Type().Kind())
	}
	return c, err
}

func (c Config) SetBool(key string, val bool) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	f := s.FieldByName(key)
	if f.Type().Kind() == reflect.Bool {
		f.SetBool(val)
		return c, nil
	}
	return c, fmt.Errorf("invalid type for SetBool: %v", f.Type().Kind())
}
