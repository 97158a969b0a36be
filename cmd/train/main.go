package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jnb666/tripletnet/nnet"
	"github.com/jnb666/tripletnet/triplet"
	"github.com/jnb666/tripletnet/web"
)

func main() {
	godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if len(os.Args) < 2 {
		fmt.Println("Usage: train [opts] <model>")
		os.Exit(1)
	}
	model := os.Args[len(os.Args)-1]
	fmt.Println("load model:", model)
	conf, err := nnet.LoadConfig(model + ".net")
	nnet.CheckErr(err)

	// override config settings from command line
	flag.Float64Var(&conf.Margin, "margin", conf.Margin, "triplet loss margin")
	flag.Float64Var(&conf.LearningRate, "lr", conf.LearningRate, "learning rate")
	flag.Float64Var(&conf.WeightDecay, "decay", conf.WeightDecay, "weight decay parameter")
	flag.Int64Var(&conf.RandSeed, "seed", conf.RandSeed, "random number seed")
	flag.IntVar(&conf.MaxEpoch, "epochs", conf.MaxEpoch, "max epochs")
	flag.IntVar(&conf.TrainBatch, "batch", conf.TrainBatch, "train batch size")
	flag.IntVar(&conf.TestBatch, "testbatch", conf.TestBatch, "test batch size")
	flag.IntVar(&conf.DebugLevel, "debug", conf.DebugLevel, "debug logging level")
	flag.StringVar(&conf.BaseDir, "basedir", conf.BaseDir, "output directory")
	flag.StringVar(&conf.WebAddr, "web", conf.WebAddr, "stats server listen address")
	flag.Parse()
	if conf.DebugLevel >= 1 {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if conf.BaseDir == "" {
		conf.BaseDir = "out"
	}
	fmt.Println(conf)

	rng := nnet.SetSeed(conf.RandSeed)
	data, err := triplet.LoadData(conf.DataSet)
	nnet.CheckErr(err)
	for _, key := range []string{"train", "valid", "test"} {
		if data[key] == nil {
			nnet.CheckErr(fmt.Errorf("missing %s dataset for %s", key, conf.DataSet))
		}
	}
	trainData, err := triplet.NewDataset(data["train"], conf.TrainBatch, rng)
	nnet.CheckErr(err)
	validData, err := triplet.NewDataset(data["valid"], conf.TestBatch, rng)
	nnet.CheckErr(err)
	testData, err := triplet.NewDataset(data["test"], conf.TestBatch, rng)
	nnet.CheckErr(err)

	trainer, err := triplet.NewTrainer(conf, data["train"].Shape(), rng)
	nnet.CheckErr(err)
	fmt.Println("== Backbone ==")
	fmt.Println(trainer.Net.Embed.Backbone)
	fmt.Println("== Model ==")
	fmt.Println(trainer.Net.Embed.Project)

	var sink func(triplet.Summary)
	if conf.WebAddr != "" {
		srv := web.NewServer(conf.BaseDir)
		sink = srv.Update
		go func() {
			if err := srv.ListenAndServe(conf.WebAddr, conf.AuthUser, conf.AuthPass); err != nil {
				log.Error().Err(err).Msg("monitor server stopped")
			}
		}()
	}

	err = trainer.Fit(trainData, validData, sink)
	nnet.CheckErr(err)
	_, err = trainer.Test(testData, sink)
	nnet.CheckErr(err)
	err = trainer.SaveWeights(filepath.Join(conf.BaseDir, "weights.dat"))
	nnet.CheckErr(err)
}
