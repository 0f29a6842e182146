// Copyright 2026 The Arkvisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package arkvisor supervises a fixed set of long-running game server
// processes ("maps") on a single host.
//
// Each map has a launch specification built once at startup.  A Supervisor
// owns the table of live processes, and every command it accepts (Status,
// Start and Stop) runs to completion before the next one begins.  That
// makes the concurrency cap check, the already-running check, and the
// spawn a single step, even when many control requests race.
//
// Liveness is level-triggered: the supervisor never trusts a cached flag,
// it polls the process handle whenever it is asked, and removes (reaps)
// the handle once the process has been seen to exit.
//
// The rest package exposes a Supervisor over HTTP, and the arkvisord
// command wires configuration, logging and the HTTP listener together.
//
package arkvisor
