// Package main runs the PE country processor.
package main

import (
	"github.com/kylejryan/appointment-lifecycle/internal/countryfn"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

func main() {
	countryfn.Run(models.CountryPE)
}
