// Package main runs the CL country processor.
package main

import (
	"github.com/kylejryan/appointment-lifecycle/internal/countryfn"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

func main() {
	countryfn.Run(models.CountryCL)
}
