//go:build oracle
// +build oracle

package db

import (
	"strconv"

	"github.com/godror/godror"

	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

func init() {
	classifiers = append(classifiers, oracleDiagnosis)
}

func oracleDiagnosis(err error) (diagnosis, bool) {
	oe, ok := godror.AsOraErr(err)
	if !ok {
		return diagnosis{}, false
	}
	d := diagnosis{code: "ORA-" + strconv.Itoa(oe.Code())}
	switch oe.Code() {
	case 1017: // invalid username/password
		d.fields = []string{config.FieldUser, config.FieldPassword}
	case 12514, 12154: // unknown service
		d.fields = []string{config.FieldDatabase}
	case 12541, 12543, 12170: // no listener, unreachable, timeout
		d.fields = networkFields
	}
	return d, true
}
