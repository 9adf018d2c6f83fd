// Copyright (C) 2017-2026  Nexedi SA and Contributors.
//                          Kirill Smelkov <kirr@nexedi.com>
//
// This program is free software: you can Use, Study, Modify and Redistribute
// it under the terms of the GNU General Public License version 3, or (at your
// option) any later version, as published by the Free Software Foundation.
//
// You can also Link and Combine this program with other software covered by
// the terms of any of the Free Software licenses or any of the Open Source
// Initiative approved licenses and Convey the resulting work. Corresponding
// source of such a combination shall include the source code for all other
// software used.
//
// This program is distributed WITHOUT ANY WARRANTY; without even the implied
// warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//
// See COPYING file for full licensing terms.
// See https://www.nexedi.com/licensing for rationale and options.

// Odbinfo - Print general information about an odb database

package odbtools

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"lab.nexedi.com/kirr/go123/prog"

	"lab.nexedi.com/kirr/odb/go/odb"
)

// paramFunc is a function to retrieve 1 storage parameter
type paramFunc func(ctx context.Context, stor odb.IStorage) (string, error)

// countRecords returns total number of stored records.
func countRecords(ctx context.Context, stor odb.IStorage) (int64, error) {
	cv, err := stor.Clusters(ctx)
	if err != nil {
		return 0, err
	}
	n := int64(0)
	for _, c := range cv {
		n += c.Records
	}
	return n, nil
}

var infov = []struct {
	name     string
	getParam paramFunc
}{
	{"name", func(ctx context.Context, stor odb.IStorage) (string, error) {
		return stor.URL(), nil
	}},
	{"clusters", func(ctx context.Context, stor odb.IStorage) (string, error) {
		cv, err := stor.Clusters(ctx)
		return fmt.Sprint(len(cv)), err
	}},
	{"records", func(ctx context.Context, stor odb.IStorage) (string, error) {
		n, err := countRecords(ctx, stor)
		return fmt.Sprint(n), err
	}},
}

// {} parameter_name -> get_parameter(stor)
var infoDict = map[string]paramFunc{}

func init() {
	for _, info := range infov {
		infoDict[info.name] = info.getParam
	}
}

// Info prints general information about an odb storage.
//
// With perCluster, record count of every cluster is printed after the parameters.
func Info(ctx context.Context, w io.Writer, stor odb.IStorage, parameterv []string, perCluster bool) error {
	wantnames := false
	if len(parameterv) == 0 {
		for _, info := range infov {
			parameterv = append(parameterv, info.name)
		}
		wantnames = true
	}

	for _, parameter := range parameterv {
		getParam, ok := infoDict[parameter]
		if !ok {
			return fmt.Errorf("invalid parameter: %s", parameter)
		}

		out := ""
		if wantnames {
			out += parameter + "="
		}
		value, err := getParam(ctx, stor)
		if err != nil {
			return fmt.Errorf("getting %s: %v", parameter, err)
		}
		out += value
		fmt.Fprintf(w, "%s\n", out)
	}

	if perCluster {
		cv, err := stor.Clusters(ctx)
		if err != nil {
			return err
		}
		for _, c := range cv {
			fmt.Fprintf(w, "cluster.%d=%d\n", c.ID, c.Records)
		}
	}
	return nil
}

// ----------------------------------------

const infoSummary = "print general information about an odb database"

func infoUsage(w io.Writer) {
	fmt.Fprintf(w,
		`Usage: odb info [OPTIONS] <storage> [parameter ...]
Print general information about an odb database.

<storage> is an URL (see 'odb help url') of an odb storage.

By default info prints information about all storage parameters. If one or
more parameter names are given as arguments, info prints the value of each
named parameter on its own line.

Options:

    -h  --help      show this help
    -clusters       also print number of records in every cluster
`)
}

func infoMain(argv []string) {
	perCluster := false
	flags := flag.FlagSet{Usage: func() { infoUsage(os.Stderr) }}
	flags.Init("", flag.ExitOnError)
	flags.BoolVar(&perCluster, "clusters", perCluster, "print number of records in every cluster")
	flags.Parse(argv[1:])

	argv = flags.Args()
	if len(argv) < 1 {
		flags.Usage()
		prog.Exit(2)
	}
	storURL := argv[0]

	ctx := context.Background()

	stor, err := odb.OpenStorage(ctx, storURL, &odb.OpenOptions{ReadOnly: true})
	if err != nil {
		prog.Fatal(err)
	}
	defer stor.Close()

	err = Info(ctx, os.Stdout, stor, argv[1:], perCluster)
	if err != nil {
		prog.Fatal(err)
	}
}
