/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"math"
	"sync"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gosem/InputParameters"
	"github.com/notargets/gosem/comm"
	"github.com/notargets/gosem/elliptic"
	"github.com/notargets/gosem/mesh"
	"github.com/notargets/gosem/utils"
)

type Levels struct {
	InputFile   string
	Ranks       int
	Threads     int
	Degrees     []int
	Mode        string
	Partitioner string
	Profile     bool
	Perf        bool
}

// LevelSummary describes one built level, as seen by rank 0
type LevelSummary struct {
	Suffix      string
	N           int
	Ndofs       int
	NhaloDofs   int
	ResidualMax float64 // Largest |Aq| at free nodes for the smooth field
}

// LevelsCmd represents the levels command
var LevelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Build the operator at each degree and apply it",
	Long: `Builds a box mesh from the input file, splits it across in-process ranks and
builds the elliptic operator at every requested degree. Each level is applied
to a smooth field and summarized.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		lv := &Levels{
			InputFile:   viper.GetString("input"),
			Ranks:       viper.GetInt("ranks"),
			Threads:     viper.GetInt("threads"),
			Degrees:     viper.GetIntSlice("degrees"),
			Mode:        viper.GetString("mode"),
			Partitioner: viper.GetString("partitioner"),
			Profile:     viper.GetBool("profile"),
			Perf:        viper.GetBool("perf"),
		}
		if lv.Profile {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
		}
		ip := InputParameters.Default()
		if len(lv.InputFile) != 0 {
			var data []byte
			if data, err = ioutil.ReadFile(lv.InputFile); err != nil {
				return
			}
			ip = &InputParameters.InputParameters{}
			if err = ip.Parse(data); err != nil {
				return
			}
		}
		ip.Print()
		_, err = RunLevels(ip, lv)
		return
	},
}

func init() {
	rootCmd.AddCommand(LevelsCmd)
	LevelsCmd.Flags().StringP("input", "I", "", "YAML setup file, the built in unit square is used when empty")
	LevelsCmd.Flags().IntP("ranks", "r", 1, "number of in-process ranks")
	LevelsCmd.Flags().IntP("threads", "t", 1, "concurrent element buckets per rank")
	LevelsCmd.Flags().IntSliceP("degrees", "n", nil, "polynomial degrees, overrides the input file")
	LevelsCmd.Flags().StringP("mode", "m", "", "CONTINUOUS or IPDG, overrides the input file")
	LevelsCmd.Flags().StringP("partitioner", "p", "", "coord or metis, overrides the input file")
	LevelsCmd.Flags().Bool("profile", false, "write a CPU profile to the current directory")
	LevelsCmd.Flags().Bool("perf", false, "count CPU instructions with perf events")
	for _, name := range []string{"input", "ranks", "threads", "degrees", "mode", "partitioner", "profile", "perf"} {
		if err := viper.BindPFlag(name, LevelsCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// field is the smooth function the levels are applied to. Dirichlet sides take
// their boundary data from it.
func field(x []float64) (f float64) {
	f = 1 + x[0] + 0.5*x[1]*x[1]
	if len(x) == 3 {
		f += math.Sin(x[2])
	}
	return
}

func RunLevels(ip *InputParameters.InputParameters, lv *Levels) (summaries []LevelSummary, err error) {
	if len(lv.Degrees) != 0 {
		ip.Degrees = lv.Degrees
	}
	if lv.Mode != "" {
		ip.Discretization = lv.Mode
	}
	if lv.Partitioner != "" {
		ip.Partitioner = lv.Partitioner
	}
	if lv.Ranks < 1 {
		lv.Ranks = 1
	}
	var (
		m     *mesh.Mesh
		cfg   elliptic.Config
		EToP  []int
		parts []*mesh.Partition
	)
	if m, err = ip.Mesh(); err != nil {
		return
	}
	m.PrintStatistics()
	if cfg, err = ip.Config(); err != nil {
		return
	}
	cfg.ParallelDegree = lv.Threads
	for id, bb := range cfg.Boundary {
		if bb.Kind == utils.BCDirichlet && bb.Value == nil {
			bb.Value = field
			cfg.Boundary[id] = bb
		}
	}
	if EToP, err = mesh.PartitionBy(ip.Partitioner, m, lv.Ranks); err != nil {
		return
	}
	if parts, err = m.Split(EToP, lv.Ranks); err != nil {
		return
	}
	var mu sync.Mutex
	run := func() error {
		return comm.Run(lv.Ranks, func(c comm.Comm) error {
			s, err := runRank(c, parts[c.Rank()], ip.Degrees, cfg)
			if err == nil && c.Rank() == 0 {
				mu.Lock()
				summaries = s
				mu.Unlock()
			}
			return err
		})
	}
	start := time.Now()
	if lv.Perf {
		var (
			ran    bool
			count  uint64
			perfEr error
		)
		count, perfEr = countInstructions(func() error {
			ran = true
			return run()
		})
		switch {
		case !ran:
			log.Printf("instruction count unavailable: %v", perfEr)
			err = run()
		case perfEr == nil:
			log.Printf("%d instructions", count)
		default:
			err = perfEr
		}
	} else {
		err = run()
	}
	if err != nil {
		return nil, err
	}
	log.Printf("%d levels on %d ranks in %v", len(summaries), lv.Ranks, time.Since(start))
	return
}

func runRank(c comm.Comm, p *mesh.Partition, degrees []int, cfg elliptic.Config) (summaries []LevelSummary, err error) {
	var (
		topo   *elliptic.Topology
		base   *elliptic.Level
		levels []*elliptic.Level
		frame  int
	)
	if topo, err = elliptic.NewTopology(c, p); err != nil {
		return
	}
	if base, err = elliptic.BuildLevel(topo, degrees[0], cfg); err != nil {
		return
	}
	if levels, err = elliptic.BuildHierarchy(base, degrees...); err != nil {
		return
	}
	x := make([]float64, topo.Dim)
	for _, lvl := range levels {
		q := make([]float64, lvl.Nlocal())
		for i := range q {
			for d := range x {
				x[d] = lvl.X[d][i]
			}
			q[i] = field(x)
		}
		if err = lvl.ApplyBoundaryValues(q); err != nil {
			return
		}
		var Aq []float64
		if Aq, err = lvl.Apply(q); err != nil {
			return
		}
		if frame, err = lvl.Report(frame, Aq); err != nil {
			return
		}
		s := LevelSummary{Suffix: lvl.Suffix, N: lvl.N}
		if s.Ndofs, err = comm.AllSum(c, lvl.Ndofs); err != nil {
			return
		}
		if s.NhaloDofs, err = comm.AllSum(c, lvl.NhaloDofs); err != nil {
			return
		}
		s.ResidualMax = freeMax(lvl, Aq)
		if s.ResidualMax, err = comm.AllMax(c, s.ResidualMax); err != nil {
			return
		}
		summaries = append(summaries, s)
	}
	if c.Rank() == 0 {
		fmt.Printf("%d levels built\n", len(summaries))
	}
	return
}

// freeMax is the largest |Aq| over nodes without a Dirichlet mask
func freeMax(lvl *elliptic.Level, Aq []float64) (mx float64) {
	masked := make(map[int]bool)
	if lvl.Mask != nil {
		for _, n := range lvl.Mask.MaskedNodes {
			masked[n] = true
		}
	}
	for i, v := range Aq {
		if !masked[i] {
			mx = math.Max(mx, math.Abs(v))
		}
	}
	return
}
